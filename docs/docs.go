// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "x-api-key",
            "in": "header"
        }
    },
    "security": [{"ApiKeyAuth": []}],
    "paths": {
        "/health": {
            "get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}
        },
        "/metrics": {
            "get": {"tags": ["health"], "summary": "Prometheus metrics", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/messages/send": {
            "post": {
                "tags": ["messages"],
                "summary": "Send one SMS",
                "parameters": [{"in": "body", "name": "message", "required": true, "schema": {"$ref": "#/definitions/handlers.SendMessageRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/response.SuccessResponse"}}
                }
            }
        },
        "/api/v1/messages/bulk": {
            "post": {
                "tags": ["messages"],
                "summary": "Send one SMS to many recipients",
                "parameters": [{"in": "body", "name": "message", "required": true, "schema": {"$ref": "#/definitions/handlers.BulkSendRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/messages/logs": {
            "get": {
                "tags": ["messages"],
                "summary": "Get message logs",
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "pageSize", "in": "query"},
                    {"type": "string", "name": "status", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.PaginatedResponse"}}}
            }
        },
        "/api/v1/messages/stats": {
            "get": {"tags": ["messages"], "summary": "Get message statistics", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/messages/cached": {
            "get": {"tags": ["messages"], "summary": "Get cached messages from Redis", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/messages/cached/{id}": {
            "get": {"tags": ["messages"], "summary": "Get one cached message", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/api/v1/carriers": {
            "get": {"tags": ["messages"], "summary": "List configured carriers", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/campaigns": {
            "get": {"tags": ["campaigns"], "summary": "List campaigns", "responses": {"200": {"description": "OK"}}},
            "post": {
                "tags": ["campaigns"],
                "summary": "Create a campaign",
                "parameters": [{"in": "body", "name": "campaign", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateCampaignRequest"}}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/api/v1/campaigns/{id}": {
            "get": {"tags": ["campaigns"], "summary": "Get a campaign", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/api/v1/campaigns/{id}/schedule": {
            "post": {"tags": ["campaigns"], "summary": "Schedule a draft campaign", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/api/v1/campaigns/{id}/cancel": {
            "post": {"tags": ["campaigns"], "summary": "Cancel a draft or scheduled campaign", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/api/v1/campaigns/{id}/run": {
            "post": {
                "tags": ["campaigns"],
                "summary": "Execute a scheduled campaign now",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "boolean", "name": "force", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/v1/templates": {
            "get": {"tags": ["templates"], "summary": "List message templates", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["templates"], "summary": "Create a message template", "responses": {"201": {"description": "Created"}}}
        },
        "/api/v1/templates/{id}/active": {
            "put": {"tags": ["templates"], "summary": "Activate or deactivate a template", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/templates/{id}/preview": {
            "post": {"tags": ["templates"], "summary": "Render a template without sending", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/autoresponders": {
            "get": {"tags": ["autoresponders"], "summary": "List autoresponders", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["autoresponders"], "summary": "Create an autoresponder", "responses": {"201": {"description": "Created"}}}
        },
        "/api/v1/autoresponders/{id}/active": {
            "put": {"tags": ["autoresponders"], "summary": "Activate or deactivate an autoresponder", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/autoresponders/{id}/logs": {
            "get": {"tags": ["autoresponders"], "summary": "Get automation logs of an autoresponder", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/events": {
            "post": {"tags": ["autoresponders"], "summary": "Offer an inbound event to the trigger engine", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/inbound/sms": {
            "post": {"tags": ["autoresponders"], "summary": "Receive an inbound SMS", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/scheduler/start": {
            "post": {"tags": ["scheduler"], "summary": "Start the campaign scheduler", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/scheduler/stop": {
            "post": {"tags": ["scheduler"], "summary": "Stop the campaign scheduler", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/scheduler/status": {
            "get": {"tags": ["scheduler"], "summary": "Get scheduler status", "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "handlers.SendMessageRequest": {
            "type": "object",
            "required": ["to"],
            "properties": {
                "to": {"type": "string"},
                "message": {"type": "string", "maxLength": 1600},
                "driver": {"type": "string"},
                "from": {"type": "string"},
                "templateId": {"type": "integer"},
                "variables": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "handlers.BulkSendRequest": {
            "type": "object",
            "required": ["to"],
            "properties": {
                "to": {"type": "array", "items": {"type": "string"}},
                "message": {"type": "string", "maxLength": 1600},
                "driver": {"type": "string"},
                "from": {"type": "string"},
                "templateId": {"type": "integer"},
                "variables": {"type": "object", "additionalProperties": {"type": "string"}},
                "batchSize": {"type": "integer"}
            }
        },
        "handlers.CreateCampaignRequest": {
            "type": "object",
            "required": ["name", "recipients"],
            "properties": {
                "name": {"type": "string"},
                "message": {"type": "string"},
                "templateId": {"type": "integer"},
                "recipients": {"type": "array", "items": {"type": "string"}},
                "scheduledAt": {"type": "string", "format": "date-time"},
                "driver": {"type": "string"},
                "fromNumber": {"type": "string"},
                "settings": {
                    "type": "object",
                    "properties": {
                        "sendRate": {"type": "number"},
                        "retryFailed": {"type": "boolean"}
                    }
                }
            }
        },
        "response.SuccessResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {}
            }
        },
        "response.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"type": "string"}
            }
        },
        "response.PaginatedResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "totalCount": {"type": "integer"},
                "totalPages": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "SMS Dispatch Service API",
	Description:      "Multi-carrier SMS dispatch with campaigns and autoresponders",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
