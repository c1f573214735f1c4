package routes

import (
	_ "embed"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

const swaggerDocPath = "/swagger/doc.json"

// OpenAPI-описание HTTP API, пишется вручную вместе с маршрутами.
//
//go:embed openapi.json
var openAPIDoc []byte

func serveOpenAPIDoc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(openAPIDoc)
}

func swaggerUI() http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL(swaggerDocPath))
}
