package itemstore

import (
	"bufio"
	"fmt"

	"github.com/graphql-go/graphql"

	"gqlhttp/internal/gqlrequest"
)

// Schema builds the demo schema over the store.
func Schema(store *Store) (graphql.Schema, error) {
	itemType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Item",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return itemFromSource(p.Source).ID, nil
				},
			},
			"name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return itemFromSource(p.Source).Name, nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"item": &graphql.Field{
				Type: itemType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					item, ok := store.Get(id)
					if !ok {
						return nil, nil
					}
					return item, nil
				},
			},
			"items": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(itemType)),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return store.List(), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"addItem": &graphql.Field{
				Type: itemType,
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"id":   &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name, _ := p.Args["name"].(string)
					id, _ := p.Args["id"].(string)
					return store.Add(Item{ID: id, Name: name}), nil
				},
			},
			// importItems shows the upload contract: the argument is a bare
			// string naming a multipart file part, resolved through the
			// upload side-table in the execution context. One item per line.
			"importItems": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(itemType)),
				Args: graphql.FieldConfigArgument{
					"upload": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					fieldName, _ := p.Args["upload"].(string)
					upload, ok := gqlrequest.UploadsFromContext(p.Context).Lookup(fieldName)
					if !ok {
						return nil, fmt.Errorf("no upload named %q", fieldName)
					}
					var items []Item
					scanner := bufio.NewScanner(upload.File)
					for scanner.Scan() {
						name := scanner.Text()
						if name == "" {
							continue
						}
						items = append(items, store.Add(Item{Name: name}))
					}
					if err := scanner.Err(); err != nil {
						return nil, fmt.Errorf("reading upload %q: %w", fieldName, err)
					}
					return items, nil
				},
			},
		},
	})

	subscriptionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Subscription",
		Fields: graphql.Fields{
			"itemAdded": &graphql.Field{
				Type: itemType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source, nil
				},
				Subscribe: func(p graphql.ResolveParams) (interface{}, error) {
					if store.broker == nil {
						return nil, fmt.Errorf("subscriptions are not enabled")
					}
					sub := store.broker.SubscribeContext(p.Context, TopicItemAdded)
					// The engine expects a bidirectional chan interface{}.
					events := make(chan interface{})
					go func() {
						defer close(events)
						for {
							select {
							case event, ok := <-sub.C():
								if !ok {
									return
								}
								select {
								case events <- event:
								case <-p.Context.Done():
									return
								}
							case <-p.Context.Done():
								return
							}
						}
					}()
					return events, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:        queryType,
		Mutation:     mutationType,
		Subscription: subscriptionType,
	})
}

func itemFromSource(source interface{}) Item {
	item, _ := source.(Item)
	return item
}
