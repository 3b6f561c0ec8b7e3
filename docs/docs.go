// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with `swag init -g cmd/flaco/main.go` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/admin/licenses/{subscription_id}": {
            "get": {
                "security": [{"Bearer": []}],
                "description": "Look up a license by billing subscription id",
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Get license",
                "parameters": [
                    {"type": "string", "description": "Subscription ID", "name": "subscription_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "License", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/admin/licenses/{subscription_id}/email": {
            "put": {
                "security": [{"Bearer": []}],
                "description": "Move a license to a new email address, issue the matching key and optionally email it",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Change license email",
                "parameters": [
                    {"type": "string", "description": "Subscription ID", "name": "subscription_id", "in": "path", "required": true},
                    {"description": "New email", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ChangeEmailRequest"}}
                ],
                "responses": {
                    "200": {"description": "Email changed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/license/activations": {
            "post": {
                "description": "List devices that have verified with this license",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["license"],
                "summary": "List device activations",
                "parameters": [
                    {"description": "License credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LicenseCredentialsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Activations", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "401": {"description": "Invalid license", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/license/activations/reset": {
            "post": {
                "description": "Forget every device recorded for this license",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["license"],
                "summary": "Reset device activations",
                "parameters": [
                    {"description": "License credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LicenseCredentialsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Activations removed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "401": {"description": "Invalid license", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/license/resend": {
            "post": {
                "description": "Email the current license for an address. The response does not reveal whether one exists.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["license"],
                "summary": "Resend license email",
                "parameters": [
                    {"description": "Email and optional tier", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ResendLicenseRequest"}}
                ],
                "responses": {
                    "200": {"description": "Request accepted", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/license/verify": {
            "post": {
                "description": "Check an (email, license key) pair and record the calling device",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["license"],
                "summary": "Verify license",
                "parameters": [
                    {"description": "License credentials and optional device identity", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.VerifyLicenseRequest"}}
                ],
                "responses": {
                    "200": {"description": "Verification verdict", "schema": {"$ref": "#/definitions/handlers.VerifyLicenseResponse"}},
                    "400": {"description": "Malformed request", "schema": {"$ref": "#/definitions/handlers.VerifyLicenseResponse"}},
                    "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/handlers.VerifyLicenseResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/handlers.VerifyLicenseResponse"}}
                }
            }
        },
        "/api/webhooks/stripe": {
            "post": {
                "description": "Receive a signed billing provider event. Non-2xx responses make the provider retry.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Billing webhook",
                "parameters": [
                    {"type": "string", "description": "t=<unix>,v1=<hex hmac>", "name": "Stripe-Signature", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "Event handled", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Bad signature or payload", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "500": {"description": "Processing failed, retry later", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ChangeEmailRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {
                "email": {"type": "string"},
                "send_email": {"description": "SendEmail defaults to true.", "type": "boolean"}
            }
        },
        "handlers.LicenseCredentialsRequest": {
            "type": "object",
            "required": ["email", "license_key"],
            "properties": {
                "email": {"type": "string"},
                "license_key": {"type": "string"}
            }
        },
        "handlers.ResendLicenseRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {
                "email": {"type": "string"},
                "tier": {"type": "string", "enum": ["pro", "enterprise"]}
            }
        },
        "handlers.VerifyLicenseRequest": {
            "type": "object",
            "required": ["email", "license_key"],
            "properties": {
                "app_version": {"type": "string", "maxLength": 64},
                "device_fingerprint_hash": {"type": "string", "maxLength": 128},
                "device_id": {"type": "string", "maxLength": 128},
                "device_name": {"type": "string", "maxLength": 255},
                "email": {"type": "string", "maxLength": 320},
                "license_key": {"type": "string", "maxLength": 64},
                "platform": {"type": "string", "maxLength": 64}
            }
        },
        "handlers.VerifyLicenseResponse": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "error": {"type": "string"},
                "expires": {"type": "string"},
                "receipt": {"type": "string"},
                "success": {"type": "boolean"},
                "tier": {"type": "string"},
                "valid": {"type": "boolean"}
            }
        },
        "utils.APIResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"$ref": "#/definitions/utils.ErrorInfo"},
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "utils.ErrorInfo": {
            "type": "object",
            "properties": {
                "details": {"type": "string"},
                "message": {"type": "string"},
                "type": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "Bearer": {
            "description": "Admin token: \"Bearer <token>\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Flaco License API",
	Description:      "License issuance from billing webhooks, verification and device activations.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
