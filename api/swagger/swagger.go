package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Atelier API",
        "description": "Enrollment and billing backend for an art workshop studio",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication and sessions"},
        {"name": "Students", "description": "Student roster management"},
        {"name": "Workshops", "description": "Workshop catalog and seat availability"},
        {"name": "Enrollments", "description": "Enrollment lifecycle"},
        {"name": "Payments", "description": "Payment verification and invoicing"},
        {"name": "Notifications", "description": "User notification feed"},
        {"name": "Events", "description": "Lifecycle audit trail"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and issue tokens",
                "responses": {
                    "200": {"description": "Token pair issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange refresh token",
                "responses": {
                    "200": {"description": "Token pair issued"},
                    "401": {"description": "Token expired or revoked"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create student",
                "responses": {
                    "201": {"$ref": "#/responses/Envelope"}
                }
            }
        },
        "/workshops": {
            "get": {
                "tags": ["Workshops"],
                "summary": "List workshops with seat availability",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"}
                }
            },
            "post": {
                "tags": ["Workshops"],
                "summary": "Create workshop",
                "responses": {
                    "201": {"$ref": "#/responses/Envelope"}
                }
            }
        },
        "/workshops/{id}/availability": {
            "get": {
                "tags": ["Workshops"],
                "summary": "Seat availability for one workshop",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"},
                    "404": {"description": "Workshop not found"}
                }
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll student into a workshop",
                "responses": {
                    "201": {"$ref": "#/responses/Envelope"},
                    "409": {"description": "Workshop full or already enrolled"}
                }
            }
        },
        "/enrollments/{id}/cancel": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Cancel enrollment",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"},
                    "409": {"description": "Enrollment already cancelled"}
                }
            }
        },
        "/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "List payments",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"}
                }
            },
            "post": {
                "tags": ["Payments"],
                "summary": "Register a payment",
                "responses": {
                    "201": {"$ref": "#/responses/Envelope"}
                }
            }
        },
        "/payments/export": {
            "get": {
                "tags": ["Payments"],
                "summary": "Export payments as CSV",
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV file"}
                }
            }
        },
        "/payments/{id}/notify-sent": {
            "post": {
                "tags": ["Payments"],
                "summary": "Mark payment as sent by the student",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"},
                    "409": {"description": "Transition not allowed"}
                }
            }
        },
        "/payments/{id}/confirm": {
            "post": {
                "tags": ["Payments"],
                "summary": "Confirm payment",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"},
                    "409": {"description": "Transition not allowed"}
                }
            }
        },
        "/payments/{id}/reject": {
            "post": {
                "tags": ["Payments"],
                "summary": "Reject payment",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"},
                    "409": {"description": "Transition not allowed"}
                }
            }
        },
        "/payments/{id}/fiscal": {
            "post": {
                "tags": ["Payments"],
                "summary": "Record externally issued fiscal data",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"},
                    "409": {"description": "Not confirmed or already invoiced"}
                }
            }
        },
        "/payments/{id}/invoice": {
            "post": {
                "tags": ["Payments"],
                "summary": "Issue electronic invoice",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"},
                    "502": {"description": "Fiscal authority unavailable"}
                }
            }
        },
        "/payments/{id}/receipt": {
            "get": {
                "tags": ["Payments"],
                "summary": "Download payment receipt PDF",
                "produces": ["application/pdf"],
                "responses": {
                    "200": {"description": "PDF file"},
                    "409": {"description": "Payment not confirmed"}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List own notifications",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"}
                }
            }
        },
        "/events": {
            "get": {
                "tags": ["Events"],
                "summary": "List domain events",
                "responses": {
                    "200": {"$ref": "#/responses/Envelope"}
                }
            }
        }
    },
    "responses": {
        "Envelope": {
            "description": "Standard response envelope",
            "schema": {"$ref": "#/definitions/ResponseEnvelope"}
        }
    },
    "definitions": {
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
