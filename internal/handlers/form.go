package handlers

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/akozadaev/go_vio_recommender/internal/models"
	"github.com/akozadaev/go_vio_recommender/internal/normalize"
)

var formTemplate = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>VIO Product Recommender</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-top: 1em; }
th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
td.num { text-align: right; }
.error { color: #b00020; }
</style>
</head>
<body>
<h1>VIO Product Recommender</h1>
<form method="post" action="/">
<label for="zip_code">Enter a zip code to find the top {{.TopN}} products:</label>
<input type="text" id="zip_code" name="zip_code" value="{{.Zip}}" autofocus>
<button type="submit">Recommend</button>
</form>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Rows}}
<h2>Top {{.TopN}} Recommended Products:</h2>
<table>
<tr><th>ProductName</th><th>ProductId</th><th>2024 Compatible VIOs</th></tr>
{{range .Rows}}<tr><td>{{.ProductName}}</td><td>{{.ProductID}}</td><td class="num">{{printf "%.0f" .PredictedFleetSize}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`))

type formData struct {
	Zip   string
	TopN  int
	Error string
	Rows  []models.Recommendation
}

// Form отображает форму ввода ZIP-кода.
// Эндпоинт: GET /
func (h *Handlers) Form(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, http.StatusOK, formData{TopN: h.ranker.TopN()})
}

// SubmitForm обрабатывает отправку формы и отображает таблицу рекомендаций или сообщение об ошибке.
// Эндпоинт: POST /
func (h *Handlers) SubmitForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderForm(w, http.StatusBadRequest, formData{TopN: h.ranker.TopN(), Error: "Invalid form submission."})
		return
	}

	zip := normalize.Zip(strings.TrimSpace(r.PostFormValue("zip_code")))
	data := formData{Zip: zip, TopN: h.ranker.TopN()}

	start := time.Now()
	recs, err := h.ranker.Recommend(zip)
	h.record("form", err, start)

	if err != nil {
		status, msg := userError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("zip_code", zip).Msg("form recommendation failed")
		}
		data.Error = msg
		h.renderForm(w, status, data)
		return
	}

	data.Rows = recs
	h.renderForm(w, http.StatusOK, data)
}

func (h *Handlers) renderForm(w http.ResponseWriter, status int, data formData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := formTemplate.Execute(w, data); err != nil {
		h.log.Error().Err(err).Msg("failed to render form")
	}
}
