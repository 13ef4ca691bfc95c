package authkit

import (
	"net/http"
	"strings"
)

// Middleware provides HTTP middleware for token verification and permission
// checking. It is the glue a request handler layer needs: verify the bearer
// credential, resolve the caller, and gate the handler on an effective
// permission.
type Middleware struct {
	service      *Service
	getToken     func(*http.Request) string
	errorHandler func(http.ResponseWriter, *http.Request, error)
}

// MiddlewareOption configures the Middleware.
type MiddlewareOption func(*Middleware)

// NewMiddleware creates a new Middleware instance.
//
// Example:
//
//	mw := authkit.NewMiddleware(service)
//	handler := mw.Authenticate(mw.RequirePermission("user_manage", authkit.NamespaceFromParam("namespaceID"))(usersHandler))
func NewMiddleware(service *Service, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		service:      service,
		getToken:     defaultGetToken,
		errorHandler: defaultErrorHandler,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithTokenExtractor sets a custom function to extract the credential from a
// request.
func WithTokenExtractor(fn func(*http.Request) string) MiddlewareOption {
	return func(m *Middleware) {
		m.getToken = fn
	}
}

// WithErrorHandler sets a custom error handler for middleware.
func WithErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) MiddlewareOption {
	return func(m *Middleware) {
		m.errorHandler = fn
	}
}

func defaultGetToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case IsInvalidToken(err), err == ErrNoUserID:
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case IsCannotAssign(err), errPermissionDenied(err):
		// Denial is indistinguishable from "no applicable role".
		http.Error(w, "Forbidden", http.StatusForbidden)
	case IsNotFound(err):
		http.Error(w, "Not Found", http.StatusNotFound)
	default:
		// Integrity and storage failures stay generic for end users.
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// deniedError marks a permission denial inside the middleware so the error
// handler can pick the response code without a dedicated sentinel leaking
// into the resolver's boolean API.
type deniedError struct {
	inner *Error
}

func (e deniedError) Error() string {
	return e.inner.Error()
}

func (e deniedError) Unwrap() error {
	return e.inner
}

func errPermissionDenied(err error) bool {
	_, ok := err.(deniedError)
	return ok
}

// Authenticate verifies the bearer credential, touches the token, and stores
// the resolved user ID and a Checker in the request context. Requests
// without a valid credential never reach the wrapped handler.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, err := m.service.VerifyToken(ctx, m.getToken(r))
		if err != nil {
			m.errorHandler(w, r, err)
			return
		}
		_ = m.service.TouchToken(ctx, token.ID) // advisory

		ctx = WithUserID(ctx, token.UserID)
		ctx = WithChecker(ctx, NewChecker(token.UserID, m.service))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NamespaceExtractor extracts the target namespace ID from an HTTP request.
type NamespaceExtractor func(*http.Request) (string, error)

// NamespaceFromParam reads the namespace ID from a URL path parameter.
// Compatible with net/http route patterns and routers that expose PathValue.
//
// Example:
//
//	// For route /namespaces/{namespaceID}/users
//	mw.RequirePermission("user_manage", authkit.NamespaceFromParam("namespaceID"))
func NamespaceFromParam(paramName string) NamespaceExtractor {
	return func(r *http.Request) (string, error) {
		id := r.PathValue(paramName)
		if id == "" {
			return "", NewError(ErrNotFound, "namespace ID not found in request")
		}
		return id, nil
	}
}

// NamespaceFromQuery reads the namespace ID from a query parameter.
func NamespaceFromQuery(queryParam string) NamespaceExtractor {
	return func(r *http.Request) (string, error) {
		id := r.URL.Query().Get(queryParam)
		if id == "" {
			return "", NewError(ErrNotFound, "namespace ID not found in query")
		}
		return id, nil
	}
}

// NamespaceFromHeader reads the namespace ID from a header.
//
// Example:
//
//	mw.RequirePermission("report_view", authkit.NamespaceFromHeader("X-Namespace-ID"))
func NamespaceFromHeader(headerName string) NamespaceExtractor {
	return func(r *http.Request) (string, error) {
		id := r.Header.Get(headerName)
		if id == "" {
			return "", NewError(ErrNotFound, "namespace ID not found in header")
		}
		return id, nil
	}
}

// StaticNamespace always returns the same namespace ID. Useful for global
// resources governed at the root.
func StaticNamespace(namespaceID string) NamespaceExtractor {
	return func(r *http.Request) (string, error) {
		return namespaceID, nil
	}
}

// RequirePermission creates middleware that requires an effective permission
// at the extracted namespace. Run it inside Authenticate so the user ID is
// present in context.
//
// Example:
//
//	router.Handle("POST /namespaces/{namespaceID}/users",
//	    mw.Authenticate(mw.RequirePermission("user_manage", authkit.NamespaceFromParam("namespaceID"))(createUserHandler)))
func (m *Middleware) RequirePermission(permission string, extractor NamespaceExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := GetUserID(ctx)
			if userID == "" {
				m.errorHandler(w, r, ErrNoUserID)
				return
			}

			namespaceID, err := extractor(r)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			ok, err := m.service.HasPermission(ctx, userID, namespaceID, permission)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}
			if !ok {
				m.errorHandler(w, r, deniedError{NewError(ErrNotFound, "missing required permission").
					WithNamespace(namespaceID).
					WithUser(userID)})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission creates middleware that requires at least one of the
// named permissions at the extracted namespace.
func (m *Middleware) RequireAnyPermission(permissions []string, extractor NamespaceExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := GetUserID(ctx)
			if userID == "" {
				m.errorHandler(w, r, ErrNoUserID)
				return
			}

			namespaceID, err := extractor(r)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			checker := GetChecker(ctx)
			if checker == nil {
				checker = NewChecker(userID, m.service)
			}
			if !checker.HasAnyPermission(ctx, namespaceID, permissions) {
				m.errorHandler(w, r, deniedError{NewError(ErrNotFound, "missing required permission").
					WithNamespace(namespaceID).
					WithUser(userID)})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
