package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Job Shop Scheduling API",
        "description": "Builds, solves and interprets job-shop scheduling models.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Schedules", "description": "Synchronous solving and instance checks"},
        {"name": "Schedule Runs", "description": "Queued solves and exports"},
        {"name": "Observability", "description": "Metrics summary"}
    ],
    "paths": {
        "/schedules/solve": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Solve a job-shop instance",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SolveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed records or empty instance", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Solver found no schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/solve/upload": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Solve a CSV upload",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "tardinessWeight", "in": "formData", "type": "integer"},
                    {"name": "maxSolveTime", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/validate": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Check an instance without solving it",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SolveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/sample": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Bundled sample instance",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/cache": {
            "delete": {
                "tags": ["Schedules"],
                "summary": "Drop cached solve results",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Flushed"}
                }
            }
        },
        "/schedules/runs": {
            "get": {
                "tags": ["Schedule Runs"],
                "summary": "List schedule runs",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["QUEUED", "RUNNING", "SUCCEEDED", "FAILED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schedule Runs"],
                "summary": "Queue an asynchronous solve",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateScheduleRunRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/runs/{id}": {
            "get": {
                "tags": ["Schedule Runs"],
                "summary": "Get a schedule run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schedule Runs"],
                "summary": "Delete a schedule run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Run is being solved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/runs/{id}/export": {
            "get": {
                "tags": ["Schedule Runs"],
                "summary": "Export the schedule of a finished run",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Document", "schema": {"type": "file"}},
                    "409": {"description": "Run has not succeeded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Metrics summary",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "TaskInput": {
            "type": "object",
            "required": ["jobId", "taskId", "machineId", "duration"],
            "properties": {
                "jobId": {"type": "string"},
                "taskId": {"type": "string"},
                "machineId": {"type": "string"},
                "duration": {"type": "string"},
                "deadline": {"type": "string"}
            }
        },
        "SolveOptions": {
            "type": "object",
            "properties": {
                "tardinessWeight": {"type": "integer"},
                "maxSolveTime": {"type": "string", "example": "10s"}
            }
        },
        "SolveRequest": {
            "type": "object",
            "required": ["tasks"],
            "properties": {
                "tasks": {"type": "array", "items": {"$ref": "#/definitions/TaskInput"}},
                "options": {"$ref": "#/definitions/SolveOptions"}
            }
        },
        "CreateScheduleRunRequest": {
            "type": "object",
            "required": ["tasks"],
            "properties": {
                "name": {"type": "string"},
                "tasks": {"type": "array", "items": {"$ref": "#/definitions/TaskInput"}},
                "options": {"$ref": "#/definitions/SolveOptions"}
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
