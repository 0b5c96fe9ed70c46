package extract

import "fmt"

// SystemPrompt frames every model call, regardless of mode or runner.
const SystemPrompt = `You are an expert retail data extraction agent.
You read supermarket flyers and produce precise, structured product records.
Record only what is actually visible. Prices and purchase limits are copied
verbatim as strings. When asked for a physical description keep it to 3-5
words. Always answer by calling the tool you were given; never answer in
prose.`

// DefaultUserPrompt is substituted when an extract request carries no
// instruction of its own.
const DefaultUserPrompt = "Extract all products from the image."

// UpdateInstruction renders the revision prompt for a conversational edit.
// The model receives the complete current snapshot and must return the
// complete corrected structure, leaving unmentioned fields untouched.
func UpdateInstruction(existingJSON, userPrompt string) string {
	return fmt.Sprintf(`Here is the current table of extracted data in JSON format:
%s

A user has provided the following instruction to correct this data:
%q

Analyze the user's intent and modify the existing data accordingly:
- add new products or details where explicitly mentioned,
- update fields of existing products,
- remove whole products, or individual fields, only when explicitly asked.

Preserve every product and field the instruction does not mention.
Return the complete corrected data structure via the tool call.`, existingJSON, userPrompt)
}
