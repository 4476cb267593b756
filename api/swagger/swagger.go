package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Villa Intake API",
        "description": "Property availability and inquiry intake for luxury rentals",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "OpsSecret": {"type": "apiKey", "in": "header", "name": "X-Ops-Secret"}
    },
    "tags": [
        {"name": "Availability", "description": "Blocked date ranges from property calendar feeds"},
        {"name": "Inquiries", "description": "Inquiry form intake"},
        {"name": "Operator", "description": "Concierge CRM actions guarded by the ops secret"}
    ],
    "paths": {
        "/availability/{slug}": {
            "get": {
                "tags": ["Availability"],
                "summary": "Blocked date ranges for a property",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "slug", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AvailabilityResponse"}},
                    "400": {"description": "Missing identifier", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/availability/{slug}/calendar": {
            "get": {
                "tags": ["Availability"],
                "summary": "Month grid with blocked and selectable days",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "slug", "in": "path", "required": true, "type": "string"},
                    {"name": "month", "in": "query", "type": "string", "description": "YYYY-MM"},
                    {"name": "minNights", "in": "query", "required": true, "type": "integer"},
                    {"name": "weekStart", "in": "query", "type": "string", "enum": ["sunday", "monday"]},
                    {"name": "start", "in": "query", "type": "string", "format": "date"},
                    {"name": "end", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/availability/{slug}/selection": {
            "post": {
                "tags": ["Availability"],
                "summary": "Replay day presses through the stay selection rules",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "slug", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SelectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/inquiries": {
            "post": {
                "tags": ["Inquiries"],
                "summary": "Submit a rental inquiry",
                "description": "Always answers ok for a well-formed inquiry; warning is set when the CRM could not be updated.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/InquiryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SubmitResult"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ops/contacts/{id}/notes": {
            "post": {
                "tags": ["Operator"],
                "summary": "Add a note to a CRM contact",
                "security": [{"OpsSecret": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "Idempotency-Key", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddNoteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "200": {"description": "Replayed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "CRM not configured", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ops/contacts/{id}/tags": {
            "post": {
                "tags": ["Operator"],
                "summary": "Add tags to a CRM contact",
                "security": [{"OpsSecret": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "Idempotency-Key", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddTagsRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ops/opportunities/{id}/stage": {
            "post": {
                "tags": ["Operator"],
                "summary": "Move an opportunity to a pipeline stage",
                "security": [{"OpsSecret": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "Idempotency-Key", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveStageRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown stage", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Opportunity not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ops/pipelines": {
            "get": {
                "tags": ["Operator"],
                "summary": "List CRM pipelines and their stage ids",
                "security": [{"OpsSecret": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ops/availability/{slug}/refresh": {
            "post": {
                "tags": ["Operator"],
                "summary": "Force a calendar feed refresh for a property",
                "security": [{"OpsSecret": []}],
                "parameters": [
                    {"name": "slug", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No feed configured", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Feed unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ops/metrics/summary": {
            "get": {
                "tags": ["Operator"],
                "summary": "Operational counters",
                "security": [{"OpsSecret": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "BlockedRange": {
            "type": "object",
            "properties": {
                "start": {"type": "string", "format": "date"},
                "end": {"type": "string", "format": "date"},
                "summary": {"type": "string"}
            }
        },
        "AvailabilityResponse": {
            "type": "object",
            "properties": {
                "propertySlug": {"type": "string"},
                "blockedRanges": {"type": "array", "items": {"$ref": "#/definitions/BlockedRange"}},
                "lastUpdated": {"type": "string", "format": "date-time"},
                "cached": {"type": "boolean"},
                "stale": {"type": "boolean"},
                "message": {"type": "string"},
                "configured": {"type": "boolean"},
                "availabilityUnknown": {"type": "boolean"}
            }
        },
        "SelectionRequest": {
            "type": "object",
            "required": ["minNights"],
            "properties": {
                "minNights": {"type": "integer"},
                "presses": {"type": "array", "items": {"type": "string", "format": "date"}},
                "today": {"type": "string", "format": "date"}
            }
        },
        "InquiryRequest": {
            "type": "object",
            "required": ["property_id"],
            "properties": {
                "name": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "property_id": {"type": "string"},
                "category": {"type": "string"},
                "check_in": {"type": "string"},
                "check_out": {"type": "string"},
                "guests": {"type": "integer"},
                "budget": {"type": "string"},
                "message": {"type": "string"},
                "duration": {"type": "string"},
                "departure_time": {"type": "string"},
                "pickup": {"type": "string"},
                "dropoff": {"type": "string"},
                "utm_source": {"type": "string"},
                "utm_medium": {"type": "string"},
                "utm_campaign": {"type": "string"},
                "referrer": {"type": "string"},
                "landing_page": {"type": "string"}
            }
        },
        "SubmitResult": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "trace_id": {"type": "string"},
                "dedup_key": {"type": "string"},
                "warning": {"type": "string"}
            }
        },
        "AddNoteRequest": {
            "type": "object",
            "required": ["body"],
            "properties": {"body": {"type": "string"}}
        },
        "AddTagsRequest": {
            "type": "object",
            "required": ["tags"],
            "properties": {"tags": {"type": "array", "items": {"type": "string"}}}
        },
        "MoveStageRequest": {
            "type": "object",
            "required": ["stage"],
            "properties": {
                "stage": {"type": "string", "enum": ["NEW_INQUIRY", "QUOTE_SENT", "REPLIED", "BOOKED", "LOST"]}
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
