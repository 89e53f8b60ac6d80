// Package docs registers the OpenAPI document served at /swagger.
// Regenerate with: swag init -g cmd/api/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "email": "support@bizmatters.dev"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/login": {
            "post": {
                "description": "Authenticate user and return JWT token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "User login",
                "parameters": [
                    {
                        "description": "Login credentials",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.LoginResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Reissue a still-valid JWT with a fresh expiry",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Refresh token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.RefreshResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/wizards": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "List every wizard with its ordered steps",
                "produces": ["application/json"],
                "tags": ["wizards"],
                "summary": "List wizards",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.WizardSummary"}}}
                }
            }
        },
        "/wizards/{kind}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Resume the caller's session in a wizard and return its snapshot",
                "produces": ["application/json"],
                "tags": ["wizards"],
                "summary": "Get wizard state",
                "parameters": [
                    {"type": "string", "description": "Wizard kind", "name": "kind", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/gateway.WizardResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/wizards/{kind}/commands": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Apply edit, advance, back, goto or submit to the caller's session",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["wizards"],
                "summary": "Dispatch wizard command",
                "parameters": [
                    {"type": "string", "description": "Wizard kind", "name": "kind", "in": "path", "required": true},
                    {
                        "description": "Command",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.CommandRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/gateway.WizardResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/gateway.CommandErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/gateway.CommandErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/gateway.CommandErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/gateway.CommandErrorResponse"}}
                }
            }
        },
        "/wizards/{kind}/exports/{index}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Render one section, or the whole plan from the review index, and store it",
                "produces": ["application/json"],
                "tags": ["wizards"],
                "summary": "Export a section",
                "parameters": [
                    {"type": "string", "description": "Wizard kind", "name": "kind", "in": "path", "required": true},
                    {"type": "integer", "description": "Step index", "name": "index", "in": "path", "required": true},
                    {"type": "string", "default": "markdown", "description": "markdown or html", "name": "format", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.ExportResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/ws/wizards/{kind}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "WebSocket endpoint that pushes a snapshot after every command on the wizard",
                "tags": ["wizards"],
                "summary": "Stream wizard state",
                "parameters": [
                    {"type": "string", "description": "Wizard kind", "name": "kind", "in": "path", "required": true},
                    {"type": "string", "description": "JWT, for clients that cannot set headers", "name": "token", "in": "query"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "gateway.CommandErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}},
                "error": {"type": "string"},
                "snapshot": {"$ref": "#/definitions/wizard.Snapshot"}
            }
        },
        "gateway.WizardResponse": {
            "type": "object",
            "properties": {
                "currentIndex": {"type": "integer"},
                "currentStepId": {"type": "string"},
                "isProcessing": {"type": "boolean"},
                "progress": {"$ref": "#/definitions/models.ProgressInfo"},
                "records": {"type": "object", "additionalProperties": {"$ref": "#/definitions/wizard.StepRecord"}},
                "steps": {"type": "array", "items": {"$ref": "#/definitions/wizard.StepView"}},
                "userId": {"type": "string"},
                "wizard": {"type": "string"}
            }
        },
        "models.CommandRequest": {
            "type": "object",
            "required": ["type"],
            "properties": {
                "index": {"type": "integer"},
                "path": {"type": "string"},
                "stepId": {"type": "string"},
                "type": {"type": "string", "enum": ["edit", "advance", "back", "goto", "submit"]},
                "value": {"type": "object"}
            }
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}},
                "error": {"type": "string"}
            }
        },
        "models.ExportResponse": {
            "type": "object",
            "properties": {
                "content": {"type": "string", "format": "byte"},
                "contentType": {"type": "string"},
                "createdAt": {"type": "string"},
                "format": {"type": "string"},
                "index": {"type": "integer"},
                "key": {"type": "string"},
                "stepId": {"type": "string"}
            }
        },
        "models.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "models.LoginResponse": {
            "type": "object",
            "properties": {
                "expires_at": {"type": "string"},
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/models.UserInfo"}
            }
        },
        "models.ProgressInfo": {
            "type": "object",
            "properties": {
                "completedSections": {"type": "array", "items": {"type": "integer"}},
                "downloadedArtifacts": {"type": "array", "items": {"type": "integer"}},
                "isComplete": {"type": "boolean"},
                "lastActiveSection": {"type": "integer"}
            }
        },
        "models.RefreshResponse": {
            "type": "object",
            "properties": {
                "expires_at": {"type": "string"},
                "token": {"type": "string"}
            }
        },
        "models.StepSummary": {
            "type": "object",
            "properties": {
                "fields": {"type": "array", "items": {"type": "string"}},
                "id": {"type": "string"},
                "order": {"type": "integer"},
                "terminal": {"type": "boolean"},
                "title": {"type": "string"}
            }
        },
        "models.UserInfo": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "email": {"type": "string"},
                "id": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "models.WizardSummary": {
            "type": "object",
            "properties": {
                "kind": {"type": "string"},
                "steps": {"type": "array", "items": {"$ref": "#/definitions/models.StepSummary"}},
                "title": {"type": "string"}
            }
        },
        "wizard.Snapshot": {
            "type": "object",
            "properties": {
                "currentIndex": {"type": "integer"},
                "currentStepId": {"type": "string"},
                "isProcessing": {"type": "boolean"},
                "records": {"type": "object", "additionalProperties": {"$ref": "#/definitions/wizard.StepRecord"}},
                "steps": {"type": "array", "items": {"$ref": "#/definitions/wizard.StepView"}},
                "userId": {"type": "string"},
                "wizard": {"type": "string"}
            }
        },
        "wizard.StepRecord": {
            "type": "object",
            "properties": {
                "aiOutput": {"type": "string"},
                "stepId": {"type": "string"},
                "userInput": {"type": "object", "additionalProperties": true}
            }
        },
        "wizard.StepView": {
            "type": "object",
            "properties": {
                "completed": {"type": "boolean"},
                "id": {"type": "string"},
                "order": {"type": "integer"},
                "status": {"type": "string", "enum": ["locked", "accessible", "current", "completed"]},
                "title": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Plan Wizard API",
	Description:      "Guided multi-step planning wizards with gated navigation, durable progress and AI-generated plans.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
