package main

// General API documentation for swaggo. Run `swag init -g cmd/wastesortd/docs.go`
// to regenerate ./docs.
//
// @title           wastesort API
// @version         1.0
// @description     HTTP API for local waste-image classification.
//
// @contact.name   wastesort maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
