package api

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

func stringMap() *openapi3.Schema {
	return openapi3.NewObjectSchema().WithAdditionalProperties(openapi3.NewStringSchema())
}

func tableNameSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("schema", openapi3.NewStringSchema()).
		WithProperty("table", openapi3.NewStringSchema())
}

func errorSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema())
}

func pathParams(names ...string) openapi3.Parameters {
	params := make(openapi3.Parameters, len(names))
	for i, n := range names {
		params[i] = &openapi3.ParameterRef{Value: openapi3.NewPathParameter(n).WithSchema(openapi3.NewStringSchema())}
	}
	return params
}

func operation(id, summary string, params openapi3.Parameters, ok *openapi3.Schema) *openapi3.Operation {
	return &openapi3.Operation{
		OperationID: id,
		Summary:     summary,
		Parameters:  params,
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
				Value: openapi3.NewResponse().WithDescription("OK").WithJSONSchema(ok),
			}),
			openapi3.WithName("default", openapi3.NewResponse().WithDescription("Error").WithJSONSchema(errorSchema())),
		),
	}
}

func withBody(op *openapi3.Operation, body *openapi3.Schema) *openapi3.Operation {
	op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithJSONSchema(body)}
	return op
}

// OpenAPI describes the HTTP API served by Routes.
func OpenAPI() *openapi3.T {
	catalog := pathParams("catalog")
	table := pathParams("catalog", "schema", "table")

	listTables := operation("listTables", "List the tables of a schema", append(pathParams("catalog", "schema"),
		&openapi3.ParameterRef{Value: openapi3.NewQueryParameter("page_size").WithSchema(openapi3.NewIntegerSchema().WithMin(0))},
		&openapi3.ParameterRef{Value: openapi3.NewQueryParameter("token").WithSchema(openapi3.NewStringSchema())},
	), openapi3.NewObjectSchema().
		WithProperty("catalog", openapi3.NewStringSchema()).
		WithProperty("tables", openapi3.NewArraySchema().WithItems(tableNameSchema())).
		WithProperty("next_token", openapi3.NewStringSchema()))

	getTable := operation("getTable", "Resolve the schema of a table", table, openapi3.NewObjectSchema().
		WithProperty("catalog", openapi3.NewStringSchema()).
		WithProperty("table", tableNameSchema()).
		WithProperty("fields", openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema().
			WithProperty("name", openapi3.NewStringSchema()).
			WithProperty("type", openapi3.NewStringSchema()).
			WithProperty("nullable", openapi3.NewBoolSchema()))).
		WithProperty("partition_columns", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("arrow_schema", openapi3.NewBytesSchema()))

	predicate := openapi3.NewObjectSchema().WithAdditionalProperties(openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()))

	getPartitions := withBody(operation("getPartitions", "List the partitions of a table", table, openapi3.NewObjectSchema().
		WithProperty("catalog", openapi3.NewStringSchema()).
		WithProperty("partition_columns", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("rows", openapi3.NewArraySchema().WithItems(stringMap()))),
		openapi3.NewObjectSchema().
			WithProperty("query_id", openapi3.NewStringSchema()).
			WithProperty("predicate", predicate))

	split := openapi3.NewObjectSchema().
		WithProperty("properties", stringMap()).
		WithProperty("spill_location", openapi3.NewStringSchema()).
		WithProperty("encryption_key", openapi3.NewObjectSchema().
			WithProperty("key", openapi3.NewBytesSchema()).
			WithProperty("nonce", openapi3.NewBytesSchema()))

	getSplits := withBody(operation("getSplits", "Plan the splits of a table", table, openapi3.NewObjectSchema().
		WithProperty("catalog", openapi3.NewStringSchema()).
		WithProperty("splits", openapi3.NewArraySchema().WithItems(split)).
		WithProperty("continuation_token", openapi3.NewStringSchema())),
		openapi3.NewObjectSchema().
			WithProperty("query_id", openapi3.NewStringSchema()).
			WithProperty("continuation_token", openapi3.NewStringSchema()).
			WithProperty("partitions", openapi3.NewArraySchema().WithItems(stringMap())).
			WithProperty("predicate", predicate))

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   "fedcat connector API",
			Version: "v1",
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/v1/catalogs/{catalog}/schemas", &openapi3.PathItem{
				Get: operation("listSchemas", "List schemas", catalog, openapi3.NewObjectSchema().
					WithProperty("catalog", openapi3.NewStringSchema()).
					WithProperty("schemas", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()))),
			}),
			openapi3.WithPath("/v1/catalogs/{catalog}/configs", &openapi3.PathItem{
				Get: operation("getDataSourceConfigs", "Show the source configuration with secrets redacted", catalog,
					openapi3.NewObjectSchema().
						WithProperty("catalog", openapi3.NewStringSchema()).
						WithProperty("configs", stringMap())),
			}),
			openapi3.WithPath("/v1/catalogs/{catalog}/schemas/{schema}/tables/", &openapi3.PathItem{Get: listTables}),
			openapi3.WithPath("/v1/catalogs/{catalog}/schemas/{schema}/tables/{table}", &openapi3.PathItem{Get: getTable}),
			openapi3.WithPath("/v1/catalogs/{catalog}/schemas/{schema}/tables/{table}/partitions", &openapi3.PathItem{Post: getPartitions}),
			openapi3.WithPath("/v1/catalogs/{catalog}/schemas/{schema}/tables/{table}/splits", &openapi3.PathItem{Post: getSplits}),
		),
	}
}
