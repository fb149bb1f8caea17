// Package credentials holds the OpenAPI document served at /swagger/.
// Regenerate with: swag init -g internal/credentials/http/router.go -o api/credentials
package credentials

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/.well-known/jwks.json": {
            "get": {"tags": ["well-known"], "summary": "Get JWKS", "produces": ["application/json"], "responses": {"200": {"description": "The JSON Web Key Set"}}}
        },
        "/livez": {
            "get": {"tags": ["Health"], "summary": "Liveness probe", "produces": ["application/json"], "responses": {"200": {"description": "status, uptime, version"}}}
        },
        "/readyz": {
            "get": {"tags": ["Health"], "summary": "Readiness probe", "produces": ["application/json"], "responses": {"200": {"description": "ready"}, "503": {"description": "service not ready"}}}
        },
        "/v1/auth/register": {
            "post": {"tags": ["Auth"], "summary": "Register an account", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"201": {"description": "account and access token"}, "400": {"description": "invalid input"}, "409": {"description": "username or email taken"}}}
        },
        "/v1/auth/login": {
            "post": {"tags": ["Auth"], "summary": "Exchange credentials for an access token", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "access token"}, "401": {"description": "invalid credentials"}}}
        },
        "/v1/auth/me": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Auth"], "summary": "Current account", "produces": ["application/json"], "responses": {"200": {"description": "account"}, "401": {"description": "unauthenticated"}}}
        },
        "/v1/auth/password/change": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Auth"], "summary": "Change own password", "consumes": ["application/json"], "responses": {"204": {"description": "changed"}, "401": {"description": "invalid credentials"}}}
        },
        "/v1/auth/password/reset-request": {
            "post": {"tags": ["Password Reset"], "summary": "Email a password reset link", "consumes": ["application/json"], "responses": {"202": {"description": "accepted"}}}
        },
        "/v1/auth/password/reset": {
            "post": {"tags": ["Password Reset"], "summary": "Set a new password with a reset token", "consumes": ["application/json"], "responses": {"204": {"description": "password replaced"}, "400": {"description": "expired, used or invalid"}, "404": {"description": "unknown token"}}}
        },
        "/v1/auth/verify/{channel}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Verification"], "summary": "Verification status for a channel", "parameters": [{"type": "string", "enum": ["email", "phone"], "name": "channel", "in": "path", "required": true}], "responses": {"200": {"description": "status"}}}
        },
        "/v1/auth/verify/{channel}/send": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Verification"], "summary": "Send a verification code", "parameters": [{"type": "string", "enum": ["email", "phone"], "name": "channel", "in": "path", "required": true}], "responses": {"202": {"description": "code sent"}, "409": {"description": "already verified"}, "502": {"description": "delivery failed"}}}
        },
        "/v1/auth/verify/{channel}/confirm": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Verification"], "summary": "Confirm a verification code", "parameters": [{"type": "string", "enum": ["email", "phone"], "name": "channel", "in": "path", "required": true}], "responses": {"200": {"description": "verified"}, "400": {"description": "expired, used or mismatched"}, "404": {"description": "no code issued"}, "429": {"description": "too many wrong codes or rate limited"}}}
        },
        "/v1/admin/users": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "List accounts", "parameters": [{"type": "integer", "name": "limit", "in": "query"}, {"type": "integer", "name": "offset", "in": "query"}], "responses": {"200": {"description": "page of accounts"}, "403": {"description": "insufficient privilege"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Create an account with a role", "consumes": ["application/json"], "responses": {"201": {"description": "created"}, "400": {"description": "invalid role"}, "403": {"description": "insufficient privilege"}}}
        },
        "/v1/admin/users/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Get an account", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "account"}, "404": {"description": "not found"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Delete an account", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "deleted"}, "403": {"description": "insufficient privilege"}}}
        },
        "/v1/admin/users/{id}/role": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Change an account's role", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "updated account"}, "400": {"description": "invalid role"}, "403": {"description": "insufficient privilege"}}}
        },
        "/v1/admin/users/{id}/password": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Set an account's password", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "password replaced"}, "403": {"description": "insufficient privilege"}}}
        },
        "/v1/admin/roles": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "List the role hierarchy", "responses": {"200": {"description": "roles by rank"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT access token. Format: \"Bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Credentials API",
	Description:      "Identity service: accounts, bearer tokens, a five-tier role hierarchy for administrative operations, email and phone verification codes, and token-based password reset.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
