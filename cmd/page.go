/*
Copyright © 2024 Rémi Ferrand

Contributor(s): Rémi Ferrand <riton.github_at_gmail.com>, 2024

This software is governed by the CeCILL license under French law and
abiding by the rules of distribution of free software.  You can  use,
modify and/ or redistribute the software under the terms of the CeCILL
license as circulated by CEA, CNRS and INRIA at the following URL
"http://www.cecill.info".

As a counterpart to the access to the source code and  rights to copy,
modify and redistribute granted by the license, users are provided only
with a limited warranty  and the software's author,  the holder of the
economic rights,  and the successive licensors  have only  limited
liability.

In this respect, the user's attention is drawn to the risks associated
with loading,  using,  modifying and/or developing or reproducing the
software by the user in light of its specific status of free software,
that may mean  that it is complicated to manipulate,  and  that  also
therefore means  that it is reserved for developers  and  experienced
professionals having in-depth computer knowledge. Users are therefore
encouraged to load and test the software's suitability as regards their
requirements in conditions enabling the security of their systems and/or
data to be ensured and,  more generally, to use and operate it in the
same conditions as regards security.

The fact that you are presently reading this means that you have had
knowledge of the CeCILL license and that you accept its terms.
*/
package cmd

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

//go:embed templates/index.html
var templatesFS embed.FS

type pageData struct {
	Environment string
}

type pageHandler struct {
	tmpl *template.Template
	data pageData
	log  *slog.Logger
}

// newPageHandler parses the embedded index template once. The environment
// name is fixed for the lifetime of the handler.
func newPageHandler(environment string) (*pageHandler, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing index template: %w", err)
	}

	return &pageHandler{
		tmpl: tmpl,
		data: pageData{Environment: environment},
		log:  slog.Default().With("component", "page-handler"),
	}, nil
}

// Render writes the index document to w.
func (p *pageHandler) Render(w io.Writer) error {
	return p.tmpl.Execute(w, p.data)
}

func (p *pageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// nothing reaches w until the template has fully rendered
	var buf bytes.Buffer
	if err := p.Render(&buf); err != nil {
		p.log.Error("rendering index page", "error", err, "request-id", requestIDFromContext(r.Context()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	if _, err := buf.WriteTo(w); err != nil {
		p.log.Debug("writing index page", "error", err, "request-id", requestIDFromContext(r.Context()))
	}
}
