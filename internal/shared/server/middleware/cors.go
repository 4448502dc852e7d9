package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS sets CORS headers and handles preflight requests for the library API.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	return cors.New(cors.Config{
		AllowOrigins:              origins,
		AllowMethods:              []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:              []string{"Content-Type", "Authorization", "apikey", "X-Request-Id"},
		ExposeHeaders:             []string{"X-Request-Id"},
		AllowCredentials:          true,
		MaxAge:                    10 * time.Minute,
		OptionsResponseStatusCode: http.StatusNoContent,
	})
}

// FunctionCORS gates the remote function endpoints to a single origin.
// Preflight answers 200 with a one-day max age. Every other response carries
// the allowed origin and Vary: Origin.
func FunctionCORS(origin string) gin.HandlerFunc {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = "http://localhost:5173"
	}
	handler := cors.New(cors.Config{
		AllowOrigins:              []string{origin},
		AllowMethods:              []string{"POST", "OPTIONS"},
		AllowHeaders:              []string{"authorization", "apikey", "content-type", "x-client-info"},
		MaxAge:                    24 * time.Hour,
		OptionsResponseStatusCode: http.StatusOK,
	})
	return func(c *gin.Context) {
		// Non-browser callers omit Origin; their responses still name the allowed origin.
		if c.Request.Method != http.MethodOptions && c.GetHeader("Origin") == "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		handler(c)
	}
}
