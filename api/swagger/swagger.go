package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "MIND Analytics API",
        "description": "Role-scoped metrics aggregation and caching engine for the MIND education platform",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Metrics", "description": "Metric catalog discovery and resolution"},
        {"name": "Badges", "description": "Student badge evaluation"},
        {"name": "System", "description": "Engine instrumentation"},
        {"name": "Admin", "description": "Cache administration"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Liveness check",
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
                    "503": {"description": "Record store unreachable"}
                }
            }
        },
        "/api/v1/metrics": {
            "get": {
                "tags": ["Metrics"],
                "summary": "List metrics visible to the caller's role",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/metrics/{id}": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Resolve a metric",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "window", "in": "query", "type": "string", "enum": ["today", "7d", "30d", "90d", "all", "custom"]},
                    {"name": "from", "in": "query", "type": "string", "description": "RFC3339, custom window only"},
                    {"name": "to", "in": "query", "type": "string", "description": "RFC3339, custom window only"},
                    {"name": "owner_id", "in": "query", "type": "string"},
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "cohort", "in": "query", "type": "string"},
                    {"name": "case_study_id", "in": "query", "type": "string"},
                    {"name": "granularity", "in": "query", "type": "string", "enum": ["hour", "day", "week"]},
                    {"name": "threshold", "in": "query", "type": "number"},
                    {"name": "p", "in": "query", "type": "number"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid parameters", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Scope violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown metric", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Record store unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/metrics/{id}/export": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Export a table metric as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"},
                    {"name": "window", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "400": {"description": "Metric is not tabular"}
                }
            }
        },
        "/api/v1/students/{id}/badges": {
            "get": {
                "tags": ["Badges"],
                "summary": "Evaluate a student's badges",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Students may only view their own badges"},
                    "404": {"description": "Unknown account"}
                }
            }
        },
        "/api/v1/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Engine instrumentation snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/cache/invalidate": {
            "post": {
                "tags": ["Admin"],
                "summary": "Drop cached metric results",
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/InvalidateRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Unknown metric"}
                }
            }
        }
    },
    "definitions": {
        "MetricInfo": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "label": {"type": "string"},
                "class": {"type": "string"},
                "kind": {"type": "string"},
                "windows": {"type": "array", "items": {"type": "string"}},
                "cache_ttl_seconds": {"type": "integer"},
                "roles": {"type": "array", "items": {"type": "string"}}
            }
        },
        "MetricResult": {
            "type": "object",
            "properties": {
                "metric_id": {"type": "string"},
                "label": {"type": "string"},
                "kind": {"type": "string"},
                "value": {"type": "number"},
                "undefined": {"type": "boolean"},
                "unit": {"type": "string"},
                "series": {"type": "array", "items": {"$ref": "#/definitions/SeriesPoint"}},
                "table": {"$ref": "#/definitions/Table"},
                "computed_at": {"type": "string"},
                "from_cache": {"type": "boolean"}
            }
        },
        "SeriesPoint": {
            "type": "object",
            "properties": {
                "bucket_start": {"type": "string"},
                "value": {"type": "number"},
                "count": {"type": "integer"}
            }
        },
        "Table": {
            "type": "object",
            "properties": {
                "columns": {"type": "array", "items": {"type": "string"}},
                "rows": {"type": "array", "items": {"type": "object"}}
            }
        },
        "InvalidateRequest": {
            "type": "object",
            "properties": {
                "metric_id": {"type": "string", "description": "Empty drops the whole cache"}
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
