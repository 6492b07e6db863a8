package validator

import (
	"fmt"
	"sync"

	"chat-brain/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// OpenAPIValidator validates requests against an OpenAPI specification
type OpenAPIValidator struct {
	swagger    *openapi3.T
	router     routers.Router
	schemaPath string
	mutex      sync.RWMutex
}

// NewOpenAPIValidator creates a new OpenAPI validator from a schema file
func NewOpenAPIValidator(schemaPath string) (*OpenAPIValidator, error) {
	swagger, err := loadOpenAPISchema(schemaPath)
	if err != nil {
		return nil, err
	}

	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	return &OpenAPIValidator{
		swagger:    swagger,
		router:     router,
		schemaPath: schemaPath,
	}, nil
}

// loadOpenAPISchema loads the OpenAPI schema from disk
func loadOpenAPISchema(path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema from %s: %w", path, err)
	}

	if err := swagger.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	return swagger, nil
}

// ReloadSchema reloads the OpenAPI schema from disk
func (v *OpenAPIValidator) ReloadSchema() error {
	swagger, err := loadOpenAPISchema(v.schemaPath)
	if err != nil {
		return err
	}

	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.swagger = swagger
	v.router = router
	return nil
}

// Middleware returns a Gin middleware that validates requests against the
// schema. Requests for paths not described by the schema pass through.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v.mutex.RLock()
		router := v.router
		v.mutex.RUnlock()

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}

		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.Error(errors.NewInvalidMessageError(fmt.Sprintf("request validation failed: %v", err)))
			c.Abort()
			return
		}

		c.Next()
	}
}
