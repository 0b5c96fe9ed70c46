package extract

// Script is the Python program executed inside the sandbox. It reads the
// whole task from /home/user/input.json, talks to the inference provider
// with a forced tool call, prints progress to stderr, and prints exactly one
// machine-readable JSON line to stdout as its final output.
const Script = `
import base64
import json
import os
import sys

import requests
from openai import OpenAI

PRODUCT_TOOL_SCHEMA = {
    "type": "object",
    "properties": {
        "products": {
            "type": "array",
            "items": {
                "type": "object",
                "properties": {
                    "name": {"type": "string"},
                    "description": {"type": "string"},
                    "price": {"type": "string"},
                    "limit": {"type": "string"},
                    "group": {"type": "string"},
                    "physical_description": {"type": "string"},
                },
                "required": ["name"],
            },
        }
    },
    "required": ["products"],
}


def log(msg):
    print(msg, file=sys.stderr)


def call_tool(client, messages, tool_name, description):
    response = client.chat.completions.create(
        model=os.environ.get("ADEPT_MODEL", "gpt-4o"),
        messages=messages,
        tools=[{
            "type": "function",
            "function": {
                "name": tool_name,
                "description": description,
                "parameters": PRODUCT_TOOL_SCHEMA,
            },
        }],
        tool_choice={"type": "function", "function": {"name": tool_name}},
    )
    call = response.choices[0].message.tool_calls[0]
    return json.loads(call.function.arguments)


def run_extract(client, payload):
    log("mode=extract: downloading flyer image")
    resp = requests.get(payload["image_url"], headers={"User-Agent": "Mozilla/5.0"}, timeout=60)
    resp.raise_for_status()
    encoded = base64.b64encode(resp.content).decode("utf-8")

    log("mode=extract: calling inference provider")
    return call_tool(client, [
        {"role": "system", "content": payload["system_prompt"]},
        {"role": "user", "content": [
            {"type": "text", "text": payload["user_prompt"]},
            {"type": "image_url", "image_url": {"url": "data:image/jpeg;base64," + encoded}},
        ]},
    ], "saveDetectedProducts", "Saves the structured data of all products found in the image.")


def run_update(client, payload):
    log("mode=update: revising existing data")
    instruction = (
        "Here is the current table of extracted data in JSON format:\n"
        + payload["existing_data_json"]
        + "\n\nA user has provided the following instruction to correct this data:\n"
        + json.dumps(payload["user_prompt"])
        + "\n\nAnalyze the user's intent and modify the existing data accordingly:"
        " add or update what is mentioned, remove only what is explicitly asked"
        " for, and preserve every product and field not mentioned."
        " Return the complete corrected data structure via the tool call."
    )
    return call_tool(client, [
        {"role": "system", "content": payload["system_prompt"]},
        {"role": "user", "content": instruction},
    ], "updateProductData", "Saves the modified and corrected structured data for the products.")


def run_finalize(payload):
    data = json.loads(payload["final_data_json"])
    if "products" not in data:
        raise ValueError("no 'products' array found in final data")

    upload_url = payload.get("upload_url")
    if not upload_url:
        log("mode=finalize: echoing approved data")
        return data

    log("mode=finalize: generating workbook")
    import openpyxl

    wb = openpyxl.Workbook()
    ws = wb.active
    ws.title = "Extracted Products"
    ws.append(["Name", "Description", "Price", "Limit", "Group"])
    for product in data["products"]:
        ws.append([
            product.get("name", ""),
            product.get("description", ""),
            product.get("price", ""),
            product.get("limit", ""),
            product.get("group", ""),
        ])
    path = "/tmp/extracted_products.xlsx"
    wb.save(path)

    log("mode=finalize: uploading workbook")
    with open(path, "rb") as f:
        resp = requests.put(upload_url, data=f, headers={
            "Content-Type": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
        }, timeout=60)
    resp.raise_for_status()
    return {"file_url": payload["file_url"], "file_type": "xlsx"}


def main():
    with open("/home/user/input.json") as f:
        payload = json.load(f)

    mode = payload.get("operation_mode")
    if not mode:
        raise ValueError("operation_mode missing from input.json")

    if mode == "finalize":
        output = run_finalize(payload)
    else:
        api_key = os.environ.get("OPENAI_API_KEY")
        if not api_key:
            raise ValueError("OPENAI_API_KEY environment variable is missing")
        client = OpenAI(api_key=api_key)
        if mode == "extract":
            output = run_extract(client, payload)
        elif mode == "update":
            output = run_update(client, payload)
        else:
            raise ValueError("unknown operation mode: " + mode)

    print(json.dumps(output))


main()
`
