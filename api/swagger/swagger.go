package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "MedSurat API",
        "description": "Medical certificate requests, officer approval and public verification.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Requests", "description": "Patient certificate requests"},
        {"name": "Verification", "description": "Public certificate verification"},
        {"name": "Documents", "description": "Certificate PDFs and history exports"},
        {"name": "Auth", "description": "Officer session"},
        {"name": "Officer", "description": "Officer review queue"}
    ],
    "paths": {
        "/requests": {
            "post": {
                "tags": ["Requests"],
                "summary": "Submit certificate request",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/Submission"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/verify": {
            "get": {
                "tags": ["Verification"],
                "summary": "Verify certificate",
                "description": "Unknown or undecided certificates return status INVALID rather than an error.",
                "parameters": [
                    {"in": "query", "name": "id", "type": "string", "required": true, "description": "Certificate ID or request ID"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{token}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download certificate by signed link",
                "produces": ["application/pdf"],
                "parameters": [
                    {"in": "path", "name": "token", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "PDF"},
                    "403": {"description": "Link expired or invalid", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Officer login",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Officer logout",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "Logged out"}}
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current officer session",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/officer/requests": {
            "get": {
                "tags": ["Officer"],
                "summary": "List certificate requests",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "status", "type": "string", "enum": ["PENDING", "APPROVED", "REJECTED"]},
                    {"in": "query", "name": "type", "type": "string", "enum": ["SICK_LEAVE", "HEALTH_CHECK", "REFERRAL", "NARCOTICS_FREE", "COMBINED"]},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "page_size", "type": "integer", "maximum": 200}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/officer/requests/export": {
            "get": {
                "tags": ["Officer"],
                "summary": "Export request history",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]},
                    {"in": "query", "name": "status", "type": "string"},
                    {"in": "query", "name": "type", "type": "string"}
                ],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/officer/requests/{id}": {
            "get": {
                "tags": ["Officer"],
                "summary": "Get certificate request",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/officer/requests/{id}/history": {
            "get": {
                "tags": ["Officer"],
                "summary": "Request audit trail",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/officer/requests/{id}/notes": {
            "patch": {
                "tags": ["Officer"],
                "summary": "Save draft clinical notes",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/NotesRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/officer/requests/{id}/draft": {
            "post": {
                "tags": ["Officer"],
                "summary": "Draft clinical notes with the AI assistant",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Assistant unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/officer/requests/{id}/approve": {
            "post": {
                "tags": ["Officer"],
                "summary": "Approve request",
                "description": "Issues a certificate ID, renders the PDF, stores it and emails the patient.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ApproveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Request already decided", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Certificate numbering exhausted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/officer/requests/{id}/reject": {
            "post": {
                "tags": ["Officer"],
                "summary": "Reject request",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Request already decided", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/officer/requests/{id}/document": {
            "get": {
                "tags": ["Officer"],
                "summary": "Certificate PDF of an approved request",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "download", "type": "string"}
                ],
                "responses": {"200": {"description": "PDF"}}
            }
        }
    },
    "definitions": {
        "Submission": {
            "type": "object",
            "required": ["nik", "fullName", "dob", "address", "email", "type", "symptoms"],
            "properties": {
                "nik": {"type": "string", "example": "3201123456780001"},
                "fullName": {"type": "string"},
                "dob": {"type": "string", "example": "1990-04-12"},
                "address": {"type": "string"},
                "email": {"type": "string"},
                "type": {"type": "string", "enum": ["SICK_LEAVE", "HEALTH_CHECK", "REFERRAL", "NARCOTICS_FREE", "COMBINED"]},
                "symptoms": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ApproveRequest": {
            "type": "object",
            "required": ["notes"],
            "properties": {
                "notes": {"type": "string"},
                "validityDays": {"type": "integer", "minimum": 1, "maximum": 14}
            }
        },
        "NotesRequest": {
            "type": "object",
            "required": ["notes"],
            "properties": {
                "notes": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "totalCount": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
