package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Voyage Admin API",
        "description": "Booking calendar and interval admission gate for the travel agency back office.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Bookings", "description": "Calendar window, conflict checks and the admission gate"},
        {"name": "BlockedSlots", "description": "Staff-defined unavailability"},
        {"name": "Activity", "description": "Audit trail of calendar mutations"},
        {"name": "Ops", "description": "Liveness, readiness and metrics"}
    ],
    "paths": {
        "/bookings": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List bookings and blocked slots in a calendar window",
                "description": "Staff receive full rows. Other callers receive an availability projection without client data.",
                "parameters": [
                    {"name": "resource", "in": "query", "type": "string"},
                    {"name": "start", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "end", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated: confirmed,cancelled"}
                ],
                "responses": {
                    "200": {"description": "Calendar view", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid window", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Store unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Bookings"],
                "summary": "Admit a booking",
                "description": "Admits the booking when no confirmed booking or active blocked slot overlaps [start, end). Retries with the same Idempotency-Key replay the original admission.",
                "consumes": ["application/json"],
                "parameters": [
                    {"name": "Idempotency-Key", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdmitRequest"}}
                ],
                "responses": {
                    "201": {"description": "Admitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "200": {"description": "Replayed admission (Idempotent-Replay: true)", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "INVALID_RANGE or VALIDATION_ERROR", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "BOOKING_CONFLICT with details.conflicts", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "RATE_LIMITED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "STORE_UNAVAILABLE", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/conflicts": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Check a proposed interval",
                "parameters": [
                    {"name": "resource", "in": "query", "type": "string"},
                    {"name": "start", "in": "query", "required": true, "type": "string", "format": "date-time"},
                    {"name": "end", "in": "query", "required": true, "type": "string", "format": "date-time"}
                ],
                "responses": {
                    "200": {"description": "available flag and conflict list", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid range", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/export": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Export a calendar window",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "resource", "in": "query", "type": "string"},
                    {"name": "start", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "end", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "400": {"description": "Invalid window or format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Get a booking",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Booking", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Bookings"],
                "summary": "Update a booking",
                "description": "A changed start or end reschedules into a new booking (rescheduled_from links the old one). status=cancelled cancels. Other fields patch in place.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateBookingRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated booking", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid range", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "BOOKING_CONFLICT or BOOKING_CANCELLED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Bookings"],
                "summary": "Cancel a booking, or remove it with hard=true",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "hard", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "Cancelled booking", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "204": {"description": "Deleted"},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/blocked-slots": {
            "get": {
                "tags": ["BlockedSlots"],
                "summary": "List blocked slots",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "resource", "in": "query", "type": "string"},
                    {"name": "start", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "end", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "include_inactive", "in": "query", "type": "boolean"}
                ],
                "responses": {"200": {"description": "Blocked slots", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["BlockedSlots"],
                "summary": "Block time on a calendar",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BlockSlotRequest"}}],
                "responses": {
                    "201": {"description": "One slot per sub-interval", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/blocked-slots/{id}": {
            "patch": {
                "tags": ["BlockedSlots"],
                "summary": "Activate or deactivate a blocked slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object", "properties": {"active": {"type": "boolean"}}}}
                ],
                "responses": {
                    "200": {"description": "Updated slot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["BlockedSlots"],
                "summary": "Remove a blocked slot",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/activity": {
            "get": {
                "tags": ["Activity"],
                "summary": "Recent calendar activity",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "resource", "in": "query", "type": "string"},
                    {"name": "resource_id", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer", "default": 50}
                ],
                "responses": {"200": {"description": "Audit entries", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "Interval": {
            "type": "object",
            "properties": {
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"}
            }
        },
        "AdmitRequest": {
            "type": "object",
            "required": ["start", "end"],
            "properties": {
                "id": {"type": "string"},
                "resource_id": {"type": "string"},
                "client_id": {"type": "string"},
                "kind": {"type": "string", "default": "appointment"},
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"},
                "metadata": {"type": "object"}
            }
        },
        "UpdateBookingRequest": {
            "type": "object",
            "properties": {
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"},
                "status": {"type": "string", "enum": ["confirmed", "cancelled"]},
                "client_id": {"type": "string"},
                "kind": {"type": "string"},
                "metadata": {"type": "object"}
            }
        },
        "BlockSlotRequest": {
            "type": "object",
            "properties": {
                "resource_id": {"type": "string"},
                "all_day": {"type": "boolean"},
                "date": {"type": "string", "format": "date"},
                "end_date": {"type": "string", "format": "date"},
                "intervals": {"type": "array", "items": {"$ref": "#/definitions/Interval"}},
                "times": {"type": "array", "items": {"type": "string", "example": "09:30"}},
                "reason": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
