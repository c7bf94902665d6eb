// Package docs holds the OpenAPI document served by the swagger UI.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "summary": "Service banner",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.RootResponse"}}}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "summary": "Liveness with model and accelerator state",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HealthResponse"}}}
            }
        },
        "/generate-story": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Generate a short story",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.GenerateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.GenerateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/reload-model": {
            "post": {
                "produces": ["application/json"],
                "summary": "Unload and load the model again",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ReloadResponse"}}}
            }
        },
        "/model-status": {
            "get": {
                "produces": ["application/json"],
                "summary": "Model and device details",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelStatusResponse"}}}
            }
        }
    },
    "definitions": {
        "types.RootResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "model_loaded": {"type": "boolean"},
                "cuda_available": {"type": "boolean"},
                "timestamp": {"type": "number"}
            }
        },
        "types.GenerateRequest": {
            "type": "object",
            "properties": {"prompt": {"type": "string"}}
        },
        "types.GenerateResponse": {
            "type": "object",
            "properties": {
                "story": {"type": "string"},
                "status": {"type": "string"},
                "model_used": {"type": "boolean"},
                "note": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "types.ReloadResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "model_loaded": {"type": "boolean"},
                "message": {"type": "string"}
            }
        },
        "types.ModelStatusResponse": {
            "type": "object",
            "properties": {
                "model_loaded": {"type": "boolean"},
                "model_name": {"type": "string"},
                "device": {"type": "string"},
                "cuda_available": {"type": "boolean"},
                "memory_allocated": {"type": "integer"},
                "state": {"type": "string"},
                "last_error": {"type": "string"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "storyd API",
	Description:      "HTTP API for short story generation backed by a local language model.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
