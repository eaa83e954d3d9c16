package main

// Serie is a series worth watching
type Serie struct {
	Titulo        string  `json:"titulo" validate:"min=1,max=255"`
	Descricao     *string `json:"descricao"`
	AnoLancamento *int64  `json:"ano_lancamento" validate:"omitempty,gte=1900,lte=2100"`
	IDCategoria   int64   `json:"id_categoria" validate:"gt=0"`
}

type Ator struct {
	NomeAtor string `json:"nome_ator" validate:"min=1,max=255"`
}

type Autor struct {
	NomeAutor string `json:"nome_autor" validate:"min=1,max=255"`
}

// Motivo is a reason to watch a series
type Motivo struct {
	IDSerie int64  `json:"id_serie" validate:"gt=0"`
	Motivo  string `json:"motivo" validate:"min=1"`
}

// Avaliacao is a rating of a series
type Avaliacao struct {
	IDSerie    int64   `json:"id_serie" validate:"gt=0"`
	Nota       int64   `json:"nota" validate:"gte=0,lte=10"`
	Comentario *string `json:"comentario"`
}

type Categoria struct {
	NomeCategoria string `json:"nome_categoria" validate:"min=1,max=255"`
}

// modelsByTable maps tables of the mustwatch schema to their models. Tables
// missing here (link tables among them) accept any of their columns.
var modelsByTable = map[string]any{
	"serie":           &Serie{},
	"ator":            &Ator{},
	"autor":           &Autor{},
	"motivo_assistir": &Motivo{},
	"avaliacao_serie": &Avaliacao{},
	"categoria":       &Categoria{},
}
