// Package crud generates REST CRUD endpoints for relational tables and runs
// the statements behind them through a single Gateway.
//
// A table gets its endpoints from a Table value: name, primary key column and
// a Shape deciding which JSON bodies are valid records. Shapes are either
// reflected from a struct (note the tags):
//
//	type Serie struct {
//		Titulo        string  `json:"titulo" validate:"max=255"`
//		Descricao     *string `json:"descricao"`
//		AnoLancamento *int64  `json:"ano_lancamento"`
//		IDCategoria   int64   `json:"id_categoria" validate:"gt=0"`
//	}
//
// or open, accepting any of the table columns. Non-pointer fields are
// required, pointer fields are optional and may be null.
//
// Here is an example of binding every table of a database and the ator-serie
// link table to an HTTP mux.
//
//	db, _ := sql.Open("mysql", dsn)
//	dialect, _ := crud.DialectFor("mysql")
//	gw := crud.NewSQLGateway(db, dialect, nil)
//	c := crud.NewController(gw, nil)
//
//	b, _ := crud.NewBinder(crud.NewSchemaDiscoverer(gw, dialect, "mustwatch"), c, crud.BinderOptions{
//		Models: map[string]any{"serie": &Serie{}},
//	})
//	mux := http.NewServeMux()
//	_, err := b.Bind(ctx, mux)
//	_, err = c.RegisterAssociation(mux, crud.NewAssociation("ator"))
//	log.Fatal(http.ListenAndServe(":8000", mux))
//
// With above, GET /serie lists rows, POST /serie creates one, PUT /serie/{id}
// and DELETE /serie/{id} update and delete a row by primary key.
// POST /ator/{id}/series/{serie_id} links an actor with a series.
package crud
