package settings

// ResultSchema is the JSON schema a run's result tree must satisfy
// before being written to stdout, validated with gojsonschema in
// internal/runner before the final write.
const ResultSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["plugin-library-tests", "plugin-tests"],
  "definitions": {
    "test-result": {
      "type": "object",
      "required": ["name", "description", "status"],
      "properties": {
        "name": {"type": "string"},
        "description": {"type": "string"},
        "status": {
          "type": "object",
          "required": ["status", "details"],
          "properties": {
            "status": {"type": "string", "enum": ["success", "failed", "skipped", "warning", "crashed"]},
            "details": {"type": ["string", "null"]}
          }
        }
      }
    }
  },
  "properties": {
    "plugin-library-tests": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"$ref": "#/definitions/test-result"}
      }
    },
    "plugin-tests": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"$ref": "#/definitions/test-result"}
      }
    }
  }
}`
