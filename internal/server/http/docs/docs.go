// Package docs registers the OpenAPI description of the checkout API with swag,
// which gin-swagger serves under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{.Description}}",
        "version": "{{.Version}}"
    },
    "basePath": "{{.BasePath}}",
    "consumes": ["application/json"],
    "produces": ["application/json"],
    "securityDefinitions": {
        "bearer": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "signature": {"type": "apiKey", "name": "X-Signature", "in": "header"}
    },
    "paths": {
        "/user/register": {
            "post": {
                "summary": "Register a user and open a session",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/AuthRequest"}}],
                "responses": {"200": {"description": "registered", "schema": {"$ref": "#/definitions/AuthResponse"}}, "400": {"description": "invalid credentials"}, "409": {"description": "login taken"}}
            }
        },
        "/user/login": {
            "post": {
                "summary": "Log in",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/AuthRequest"}}],
                "responses": {"200": {"description": "authenticated", "schema": {"$ref": "#/definitions/AuthResponse"}}, "401": {"description": "invalid credentials"}}
            }
        },
        "/user/orders": {
            "post": {
                "summary": "Check out a cart",
                "security": [{"bearer": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/CheckoutRequest"}}],
                "responses": {
                    "201": {"description": "order awaiting payment", "schema": {"$ref": "#/definitions/Order"}},
                    "400": {"description": "invalid cart", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "insufficient stock", "schema": {"$ref": "#/definitions/Error"}},
                    "422": {"description": "unknown product, invalid price or discount", "schema": {"$ref": "#/definitions/Error"}},
                    "502": {"description": "payment gateway failed, order kept for retry", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "get": {
                "summary": "List the caller's orders",
                "security": [{"bearer": []}],
                "responses": {
                    "200": {"description": "orders", "schema": {"type": "array", "items": {"$ref": "#/definitions/Order"}}},
                    "204": {"description": "no orders"}
                }
            }
        },
        "/user/orders/{id}": {
            "get": {
                "summary": "Get an order",
                "security": [{"bearer": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string", "format": "uuid"}],
                "responses": {"200": {"description": "order", "schema": {"$ref": "#/definitions/Order"}}, "404": {"description": "not found"}}
            },
            "delete": {
                "summary": "Hide a finished order",
                "security": [{"bearer": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string", "format": "uuid"}],
                "responses": {"204": {"description": "deleted"}, "404": {"description": "not found"}, "409": {"description": "order still open"}}
            }
        },
        "/user/orders/{id}/payment": {
            "post": {
                "summary": "Resume or retry payment",
                "security": [{"bearer": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string", "format": "uuid"}],
                "responses": {
                    "200": {"description": "payment details", "schema": {"$ref": "#/definitions/RetryPayment"}},
                    "409": {"description": "order cannot be paid", "schema": {"$ref": "#/definitions/Error"}},
                    "502": {"description": "payment gateway failed", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/user/orders/{id}/cancel": {
            "post": {
                "summary": "Cancel an unpaid order",
                "security": [{"bearer": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string", "format": "uuid"}],
                "responses": {
                    "200": {"description": "cancelled order", "schema": {"$ref": "#/definitions/Order"}},
                    "409": {"description": "order already settled", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/payments/webhook": {
            "post": {
                "summary": "Payment gateway status report",
                "security": [{"signature": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/WebhookRequest"}}],
                "responses": {
                    "200": {"description": "applied or duplicate", "schema": {"$ref": "#/definitions/WebhookResponse"}},
                    "400": {"description": "malformed report"},
                    "401": {"description": "bad signature"},
                    "404": {"description": "unknown intent", "schema": {"$ref": "#/definitions/WebhookResponse"}}
                }
            }
        }
    },
    "definitions": {
        "AuthRequest": {
            "type": "object",
            "properties": {"login": {"type": "string"}, "password": {"type": "string"}}
        },
        "AuthResponse": {
            "type": "object",
            "properties": {"token": {"type": "string"}}
        },
        "CheckoutRequest": {
            "type": "object",
            "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/CartLine"}}}
        },
        "CartLine": {
            "type": "object",
            "properties": {"product_variation_id": {"type": "string", "format": "uuid"}, "quantity": {"type": "integer"}}
        },
        "OrderItem": {
            "type": "object",
            "properties": {
                "product_variation_id": {"type": "string", "format": "uuid"},
                "quantity": {"type": "integer"},
                "unit_price": {"type": "string"},
                "discount_type": {"type": "string", "enum": ["NONE", "PERCENTAGE", "FIXED_AMOUNT"]},
                "discount_value": {"type": "string"},
                "sub_total": {"type": "string"},
                "discount": {"type": "string"},
                "line_total": {"type": "string"}
            }
        },
        "Order": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "format": "uuid"},
                "status": {"type": "string", "enum": ["PENDING_PAYMENT", "AWAITING_PAYMENT", "STOCK_RESERVATION_FAILED", "PAID", "PAYMENT_FAILED", "EXPIRED", "CANCELLED"]},
                "currency": {"type": "string"},
                "sub_total": {"type": "string"},
                "discount": {"type": "string"},
                "total": {"type": "string"},
                "is_stock_reserved": {"type": "boolean"},
                "client_secret": {"type": "string"},
                "payment_url": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"},
                "created_at": {"type": "string", "format": "date-time"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/OrderItem"}}
            }
        },
        "RetryPayment": {
            "type": "object",
            "properties": {
                "order_id": {"type": "string", "format": "uuid"},
                "is_payment_needed": {"type": "boolean"},
                "client_secret": {"type": "string"},
                "payment_url": {"type": "string"}
            }
        },
        "Shortage": {
            "type": "object",
            "properties": {"product_variation_id": {"type": "string"}, "requested": {"type": "integer"}, "available": {"type": "integer"}}
        },
        "Error": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "order_id": {"type": "string"},
                "product_variation_id": {"type": "string"},
                "shortages": {"type": "array", "items": {"$ref": "#/definitions/Shortage"}}
            }
        },
        "WebhookRequest": {
            "type": "object",
            "properties": {"intent_id": {"type": "string"}, "status": {"type": "string"}}
        },
        "WebhookResponse": {
            "type": "object",
            "properties": {"outcome": {"type": "string", "enum": ["ok", "unchanged", "not_found", "conflict"]}}
        }
    }
}`

// SwaggerInfo describes the API served by the router.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/api",
	Title:            "Order checkout API",
	Description:      "Cart checkout with stock reservation and payment orchestration.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
