package http

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	boxType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Box",
		Fields: graphql.Fields{
			"west":  &graphql.Field{Type: graphql.Float},
			"south": &graphql.Field{Type: graphql.Float},
			"east":  &graphql.Field{Type: graphql.Float},
			"north": &graphql.Field{Type: graphql.Float},
		},
	})

	jobType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Job",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"request_id": &graphql.Field{Type: graphql.String},
			"status":     &graphql.Field{Type: graphql.String},
			"progress":   &graphql.Field{Type: graphql.Int},
			"result_url": &graphql.Field{Type: graphql.String},
			"error":      &graphql.Field{Type: graphql.String},
			"created_at": &graphql.Field{Type: graphql.DateTime},
			"updated_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	boxArgs := func(name string) *graphql.ArgumentConfig {
		return &graphql.ArgumentConfig{
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.Float))),
			Description: name + " as [west, south, east, north]",
		}
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"clip": &graphql.Field{
				Type:        graphql.NewList(boxType),
				Description: "Clip a bounding box to a dataset extent",
				Args: graphql.FieldConfigArgument{
					"dataset": boxArgs("Dataset extent"),
					"bbox":    boxArgs("Requested box"),
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					extent, err := geospatial.BoxFromSlice(floats(p.Args["dataset"]))
					if err != nil {
						return nil, fmt.Errorf("dataset: %w", err)
					}
					box, err := geospatial.BoxFromSlice(floats(p.Args["bbox"]))
					if err != nil {
						return nil, fmt.Errorf("bbox: %w", err)
					}

					boxes := deps.Clip.Clip(geospatial.BoundsOf(extent), box)
					out := make([]map[string]interface{}, 0, len(boxes))
					for _, b := range boxes {
						c := geospatial.Corners(b)
						out = append(out, map[string]interface{}{
							"west": c[0], "south": c[1], "east": c[2], "north": c[3],
						})
					}
					return out, nil
				},
			},
			"job": &graphql.Field{
				Type:        jobType,
				Description: "Get a job by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Jobs == nil {
						return nil, errors.New("job service not configured")
					}
					job, err := deps.Jobs.Get(p.Context, p.Args["id"].(string))
					if errors.Is(err, domain.ErrJobNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return jobFields(job), nil
				},
			},
			"jobs": &graphql.Field{
				Type:        graphql.NewList(jobType),
				Description: "List recent jobs",
				Args: graphql.FieldConfigArgument{
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Jobs == nil {
						return nil, errors.New("job service not configured")
					}
					jobs, _, err := deps.Jobs.List(p.Context, p.Args["offset"].(int), p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(jobs))
					for i := range jobs {
						out = append(out, jobFields(&jobs[i]))
					}
					return out, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func jobFields(j *domain.Job) map[string]interface{} {
	return map[string]interface{}{
		"id":         j.ID,
		"request_id": j.RequestID,
		"status":     string(j.Status),
		"progress":   j.Progress,
		"result_url": j.ResultURL,
		"error":      j.Error,
		"created_at": j.CreatedAt,
		"updated_at": j.UpdatedAt,
	}
}

func floats(v interface{}) []float64 {
	list, _ := v.([]interface{})
	out := make([]float64, 0, len(list))
	for _, x := range list {
		switch f := x.(type) {
		case float64:
			out = append(out, f)
		case int:
			out = append(out, float64(f))
		}
	}
	return out
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
