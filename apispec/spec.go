package apispec

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
)

// Operation is what was learned about one method on one templated path.
// Request and Responses hold the schemas of the JSON bodies seen, nil when
// no body was.
type Operation struct {
	Method    string
	Path      string
	Params    openapi3.Parameters
	Request   *openapi3.Schema
	Responses map[int]*openapi3.Schema
}

// Document assembles an OpenAPI document from observed operations.
func Document(title, version string, ops []*Operation) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.0",
		Info:    &openapi3.Info{Title: title, Version: version},
		Paths:   openapi3.Paths{},
	}
	for _, op := range ops {
		item, ok := doc.Paths[op.Path]
		if !ok {
			item = &openapi3.PathItem{}
			doc.Paths[op.Path] = item
		}
		item.SetOperation(op.Method, operation(op))
	}
	return doc
}

func operation(op *Operation) *openapi3.Operation {
	res := openapi3.NewOperation()
	res.OperationID = operationID(op.Method, op.Path)
	res.Parameters = op.Params

	if op.Request != nil {
		rb := openapi3.NewRequestBody().WithJSONSchema(op.Request)
		res.RequestBody = &openapi3.RequestBodyRef{Value: rb}
	}

	res.Responses = openapi3.Responses{}
	codes := make([]int, 0, len(op.Responses))
	for code := range op.Responses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		r := openapi3.NewResponse().WithDescription(http.StatusText(code))
		if s := op.Responses[code]; s != nil {
			r = r.WithJSONSchema(s)
		}
		res.Responses[strconv.Itoa(code)] = &openapi3.ResponseRef{Value: r}
	}
	if len(codes) == 0 {
		res.Responses["default"] = &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("")}
	}
	return res
}

func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, p := range strings.Split(path, "/") {
		p = strings.Trim(p, "{}")
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// TemplatePath replaces integer and uuid path segments with {argN}
// placeholders and returns a path parameter for each.
func TemplatePath(path string) (string, openapi3.Parameters) {
	var params openapi3.Parameters
	parts := strings.Split(path, "/")
	for i, p := range parts {
		var s *openapi3.Schema
		if _, err := strconv.Atoi(p); err == nil {
			s = openapi3.NewIntegerSchema()
		} else if _, err := uuid.Parse(p); err == nil {
			s = openapi3.NewUUIDSchema()
		} else {
			continue
		}
		name := fmt.Sprintf("arg%d", len(params)+1)
		parts[i] = "{" + name + "}"
		params = append(params, &openapi3.ParameterRef{
			Value: openapi3.NewPathParameter(name).WithRequired(true).WithSchema(s),
		})
	}
	return strings.Join(parts, "/"), params
}
