package main

// General API documentation for swaggo. Run `swag init -g cmd/storyd/docs.go
// -o internal/httpapi/docs` to regenerate.
//
// @title           storyd API
// @version         1.0
// @description     HTTP API for short story generation backed by a local language model.
//
// @BasePath  /
//
// @schemes http
