package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Olimpiada API",
        "description": "Evaluation, change-approval and classification closeout service",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Scores", "description": "Evaluator score registry"},
        {"name": "ChangeRequests", "description": "Score revision workflow"},
        {"name": "Closure", "description": "Classification phase closeout"},
        {"name": "Medals", "description": "Ranking, medals and standings"},
        {"name": "Enrollments", "description": "Area enrollment reads"},
        {"name": "Audit", "description": "Operation audit trail"}
    ],
    "paths": {
        "/scores": {
            "get": {
                "tags": ["Scores"],
                "summary": "List evaluation scores",
                "parameters": [
                    {"name": "enrollmentId", "in": "query", "type": "string"},
                    {"name": "evaluatorId", "in": "query", "type": "string"},
                    {"name": "phase", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Scores"],
                "summary": "Register or revise an evaluation score",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Invalid score or payload"},
                    "409": {"description": "Phase already closed"}
                }
            }
        },
        "/scores/{id}/history": {
            "get": {
                "tags": ["Scores"],
                "summary": "Change log of an evaluation",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/change-requests": {
            "get": {
                "tags": ["ChangeRequests"],
                "summary": "List change requests",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["ChangeRequests"],
                "summary": "Submit a score change request",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Invalid payload or no-op change"}
                }
            }
        },
        "/change-requests/{id}": {
            "get": {
                "tags": ["ChangeRequests"],
                "summary": "Get a change request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/change-requests/{id}/resolve": {
            "post": {
                "tags": ["ChangeRequests"],
                "summary": "Resolve a pending change request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Already resolved"}
                }
            }
        },
        "/classification/close": {
            "post": {
                "tags": ["Closure"],
                "summary": "Close the classification phase for an area and level",
                "responses": {
                    "200": {"description": "Partitions"},
                    "409": {"description": "Already closed"}
                }
            }
        },
        "/classification/promote": {
            "post": {
                "tags": ["Closure"],
                "summary": "Seed final-round results for classified enrollments",
                "responses": {
                    "200": {"description": "Promoted enrollment ids"},
                    "409": {"description": "Classification not closed"}
                }
            }
        },
        "/classification/status": {
            "get": {
                "tags": ["Closure"],
                "summary": "Get the closure status of a phase",
                "parameters": [
                    {"name": "areaId", "in": "query", "required": true, "type": "string"},
                    {"name": "levelId", "in": "query", "required": true, "type": "string"},
                    {"name": "phase", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/medals/assign": {
            "post": {
                "tags": ["Medals"],
                "summary": "Assign positions and medals for a closed phase",
                "responses": {
                    "200": {"description": "Ranked standings"},
                    "409": {"description": "Phase not closed"}
                }
            }
        },
        "/standings": {
            "get": {
                "tags": ["Medals"],
                "summary": "Ranked standings for an area, level and phase",
                "parameters": [
                    {"name": "areaId", "in": "query", "required": true, "type": "string"},
                    {"name": "levelId", "in": "query", "required": true, "type": "string"},
                    {"name": "phase", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List area enrollments",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get an enrollment",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/audit": {
            "get": {
                "tags": ["Audit"],
                "summary": "List audit entries for a resource",
                "parameters": [
                    {"name": "resource", "in": "query", "required": true, "type": "string"},
                    {"name": "resourceId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
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
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "total": {"type": "integer"}
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
