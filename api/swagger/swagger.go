package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable Engine API",
        "description": "Timetable and session lifecycle engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Sessions", "description": "Session lifecycle management"},
        {"name": "Templates", "description": "Weekly template expansion"},
        {"name": "Views", "description": "Weekly timetable projections and exports"}
    ],
    "paths": {
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions along one query axis",
                "parameters": [
                    {"name": "room", "in": "query", "type": "string"},
                    {"name": "teacher", "in": "query", "type": "string"},
                    {"name": "group", "in": "query", "type": "string"},
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "specialty", "in": "query", "type": "string"},
                    {"name": "level", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Create a session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SessionCandidate"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Fetch a single session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Sessions"],
                "summary": "Move a planned session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SessionPatch"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/cancel": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Cancel a session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CancelRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/makeup": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Schedule a makeup for a cancelled session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MakeupRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "All slots conflicted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/templates/expand": {
            "post": {
                "tags": ["Templates"],
                "summary": "Expand a weekly schedule template into sessions",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExpandRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict in STRICT mode", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/views/{actorKind}/{actorID}": {
            "get": {
                "tags": ["Views"],
                "summary": "Weekly timetable view for an actor",
                "parameters": [
                    {"name": "actorKind", "in": "path", "required": true, "type": "string"},
                    {"name": "actorID", "in": "path", "required": true, "type": "string"},
                    {"name": "week", "in": "query", "type": "string"},
                    {"name": "grid", "in": "query", "type": "string"},
                    {"name": "historical", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/views/{actorKind}/{actorID}/export": {
            "get": {
                "tags": ["Views"],
                "summary": "Export a weekly view as CSV or PDF",
                "parameters": [
                    {"name": "actorKind", "in": "path", "required": true, "type": "string"},
                    {"name": "actorID", "in": "path", "required": true, "type": "string"},
                    {"name": "week", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "Session": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "room_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "group_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "status": {"type": "string", "enum": ["PLANNED", "CANCELLED", "COMPLETED", "MAKEUP"]},
                "origin": {"type": "string", "enum": ["TEMPLATE", "MANUAL", "MAKEUP"]},
                "replaces_id": {"type": "string"},
                "cancel_reason": {"type": "string"},
                "modified_by": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "SessionCandidate": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "room_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "group_id": {"type": "string"},
                "teacher_id": {"type": "string"}
            },
            "required": ["date", "start_time", "end_time", "room_id", "subject_id", "group_id", "teacher_id"]
        },
        "SessionPatch": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "room_id": {"type": "string"}
            }
        },
        "CancelRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            },
            "required": ["reason"]
        },
        "MakeupSlot": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "room_id": {"type": "string"}
            },
            "required": ["date", "start_time", "end_time", "room_id"]
        },
        "MakeupRequest": {
            "type": "object",
            "properties": {
                "slots": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/MakeupSlot"}
                }
            },
            "required": ["slots"]
        },
        "TemplateEntry": {
            "type": "object",
            "properties": {
                "day": {"type": "integer", "minimum": 1, "maximum": 7},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "room_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "group_id": {"type": "string"},
                "teacher_id": {"type": "string"}
            },
            "required": ["day", "start_time", "end_time", "room_id", "subject_id", "group_id", "teacher_id"]
        },
        "ScheduleTemplate": {
            "type": "object",
            "properties": {
                "semester_id": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "recurrence": {"type": "string", "enum": ["WEEKLY", "BIWEEKLY_ODD", "BIWEEKLY_EVEN"]},
                "skip_dates": {
                    "type": "array",
                    "items": {"type": "string"}
                },
                "entries": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/TemplateEntry"}
                }
            },
            "required": ["semester_id", "start_date", "end_date", "recurrence", "entries"]
        },
        "ExpandRequest": {
            "type": "object",
            "properties": {
                "template": {"$ref": "#/definitions/ScheduleTemplate"},
                "mode": {"type": "string", "enum": ["STRICT", "SKIP", "FORCE"]},
                "replace": {"type": "boolean"}
            },
            "required": ["template"]
        },
        "ConflictRecord": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["ROOM", "TEACHER", "GROUP"]},
                "existing_id": {"type": "string"},
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "room_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "group_id": {"type": "string"},
                "explanation": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
