package model

type TaskMode string

const (
	TaskModeExtract  TaskMode = "extract"
	TaskModeUpdate   TaskMode = "update"
	TaskModeFinalize TaskMode = "finalize"
)

// Task is the event payload carried from the accepting path to the execution
// path. Mode is the discriminator; only the fields of the matching variant
// are populated:
//
//	extract:  ImageURL, UserPrompt
//	update:   ExistingData, UserPrompt
//	finalize: FinalData
type Task struct {
	Mode         TaskMode  `json:"mode"`
	ImageURL     string    `json:"image_url,omitempty"`
	UserPrompt   string    `json:"user_prompt,omitempty"`
	// No omitempty: the update and finalize payload schemas require their
	// array present even when it is empty.
	ExistingData []Product `json:"existing_data"`
	FinalData    []Product `json:"final_data"`
}
