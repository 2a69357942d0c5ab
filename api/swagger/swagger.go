package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Syllabus Portal Sync API",
        "description": "Local front door for the lesson plan portal",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/session/login": {
            "post": {
                "tags": [
                    "Session"
                ],
                "summary": "Open a session",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/LoginRequest"
                        }
                    }
                ]
            }
        },
        "/session": {
            "get": {
                "tags": [
                    "Session"
                ],
                "summary": "Describe the active session",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/session/logout": {
            "post": {
                "tags": [
                    "Session"
                ],
                "summary": "End the active session",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/session/visibility": {
            "post": {
                "tags": [
                    "Session"
                ],
                "summary": "Report client visibility",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/VisibilityRequest"
                        }
                    }
                ]
            }
        },
        "/state": {
            "get": {
                "tags": [
                    "State"
                ],
                "summary": "Current portal state",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/state/version": {
            "get": {
                "tags": [
                    "State"
                ],
                "summary": "Long-poll the data version",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "since",
                        "type": "integer",
                        "required": false,
                        "description": "Last seen data version"
                    },
                    {
                        "in": "query",
                        "name": "wait",
                        "type": "string",
                        "required": false,
                        "description": "Maximum wait duration"
                    }
                ]
            }
        },
        "/sync/pull": {
            "post": {
                "tags": [
                    "Sync"
                ],
                "summary": "Pull the remote snapshot now",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "force",
                        "type": "boolean",
                        "required": false,
                        "description": "Bypass intermediary caches"
                    }
                ]
            }
        },
        "/sync/url": {
            "get": {
                "tags": [
                    "Sync"
                ],
                "summary": "Sync status and configured URL",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": [
                    "Sync"
                ],
                "summary": "Configure the remote endpoint",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SyncURLRequest"
                        }
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Sync"
                ],
                "summary": "Forget the remote endpoint",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/sync/outbox": {
            "get": {
                "tags": [
                    "Sync"
                ],
                "summary": "List writes awaiting replay",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/sync/outbox/replay": {
            "post": {
                "tags": [
                    "Sync"
                ],
                "summary": "Replay queued writes now",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/plans": {
            "post": {
                "tags": [
                    "Plans"
                ],
                "summary": "Submit a week of lesson plans",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SubmitPlanRequest"
                        }
                    }
                ]
            }
        },
        "/plans/gate": {
            "get": {
                "tags": [
                    "Plans"
                ],
                "summary": "Check whether a submission is accepted",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "teacherId",
                        "type": "string",
                        "required": false,
                        "description": ""
                    },
                    {
                        "in": "query",
                        "name": "week",
                        "type": "string",
                        "required": false,
                        "description": ""
                    }
                ]
            }
        },
        "/resubmits": {
            "post": {
                "tags": [
                    "Resubmits"
                ],
                "summary": "Ask to unlock a submitted week",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ResubmitRequest"
                        }
                    }
                ]
            }
        },
        "/resubmits/{id}/approve": {
            "post": {
                "tags": [
                    "Resubmits"
                ],
                "summary": "Approve a resubmission request",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true
                    }
                ]
            }
        },
        "/resubmits/{id}/reject": {
            "post": {
                "tags": [
                    "Resubmits"
                ],
                "summary": "Reject a resubmission request",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true
                    }
                ]
            }
        },
        "/submissions/{teacherId}/{week}": {
            "delete": {
                "tags": [
                    "Submissions"
                ],
                "summary": "Delete a submission and its requests",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "teacherId",
                        "type": "string",
                        "required": true
                    },
                    {
                        "in": "path",
                        "name": "week",
                        "type": "string",
                        "required": true
                    }
                ]
            }
        },
        "/registry": {
            "put": {
                "tags": [
                    "Registry"
                ],
                "summary": "Replace the faculty registry",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateRegistryRequest"
                        }
                    }
                ]
            }
        },
        "/registry/factory-reset": {
            "post": {
                "tags": [
                    "Registry"
                ],
                "summary": "Empty the faculty registry",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/FactoryResetRequest"
                        }
                    }
                ]
            }
        },
        "/warnings": {
            "post": {
                "tags": [
                    "Compliance"
                ],
                "summary": "Warn teachers who have not submitted",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/WeekRequest"
                        }
                    }
                ]
            }
        },
        "/compliance": {
            "get": {
                "tags": [
                    "Compliance"
                ],
                "summary": "Weekly submission compliance",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "week",
                        "type": "string",
                        "required": false,
                        "description": ""
                    }
                ]
            }
        },
        "/compliance.csv": {
            "get": {
                "tags": [
                    "Compliance"
                ],
                "summary": "Download the compliance report as CSV",
                "produces": [
                    "text/csv"
                ],
                "responses": {
                    "200": {
                        "description": "CSV file"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "week",
                        "type": "string",
                        "required": false,
                        "description": ""
                    }
                ]
            }
        },
        "/compiled-pdf": {
            "post": {
                "tags": [
                    "Exports"
                ],
                "summary": "Compile and send a week's lesson plans as PDF",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CompiledPDFRequest"
                        }
                    }
                ]
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": [
                    "Exports"
                ],
                "summary": "Download a stored export via signed token",
                "produces": [
                    "application/pdf"
                ],
                "responses": {
                    "200": {
                        "description": "PDF file"
                    },
                    "410": {
                        "description": "Link expired"
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "token",
                        "type": "string",
                        "required": true
                    }
                ]
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                },
                "syncUrl": {
                    "type": "string"
                }
            }
        },
        "VisibilityRequest": {
            "type": "object",
            "properties": {
                "visible": {
                    "type": "boolean"
                }
            }
        },
        "SyncURLRequest": {
            "type": "object",
            "properties": {
                "url": {
                    "type": "string"
                }
            }
        },
        "SubmitPlanRequest": {
            "type": "object",
            "properties": {
                "teacherId": {
                    "type": "string"
                },
                "weekStarting": {
                    "type": "string"
                },
                "plans": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "classLevel": {
                                "type": "string"
                            },
                            "section": {
                                "type": "string"
                            },
                            "subject": {
                                "type": "string"
                            },
                            "chapter": {
                                "type": "string"
                            },
                            "topics": {
                                "type": "string"
                            },
                            "homework": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "ResubmitRequest": {
            "type": "object",
            "properties": {
                "teacherId": {
                    "type": "string"
                },
                "weekStarting": {
                    "type": "string"
                }
            }
        },
        "UpdateRegistryRequest": {
            "type": "object",
            "properties": {
                "teachers": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "id": {
                                "type": "string"
                            },
                            "email": {
                                "type": "string"
                            },
                            "name": {
                                "type": "string"
                            },
                            "whatsapp": {
                                "type": "string"
                            },
                            "classTeacher": {
                                "type": "object"
                            },
                            "assignments": {
                                "type": "array",
                                "items": {
                                    "type": "object",
                                    "properties": {
                                        "classLevel": {
                                            "type": "string"
                                        },
                                        "section": {
                                            "type": "string"
                                        },
                                        "subject": {
                                            "type": "string"
                                        }
                                    }
                                }
                            }
                        }
                    }
                }
            }
        },
        "FactoryResetRequest": {
            "type": "object",
            "properties": {
                "confirm": {
                    "type": "boolean"
                }
            }
        },
        "WeekRequest": {
            "type": "object",
            "properties": {
                "weekStarting": {
                    "type": "string"
                }
            }
        },
        "CompiledPDFRequest": {
            "type": "object",
            "properties": {
                "weekStarting": {
                    "type": "string"
                },
                "recipient": {
                    "type": "string"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "meta": {
                    "type": "object"
                }
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
