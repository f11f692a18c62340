package certs

import (
	"bytes"
	"errors"
	"text/template"

	"locert/internal/store"
)

// requestConfTemplate is the openssl request configuration generated into
// each domain directory. Every requested domain lands in the
// subjectAltName list; the sorted first domain doubles as the subject CN.
const requestConfTemplate = `[req]
prompt             = no
default_md         = sha256
distinguished_name = req_dn
req_extensions     = v3_req

[req_dn]
CN = {{.CommonName}}

[v3_req]
basicConstraints = CA:FALSE
keyUsage         = digitalSignature, keyEncipherment
subjectAltName   = @alt_names

[alt_names]
{{- range $i, $d := .Domains}}
DNS.{{inc $i}} = {{$d}}
{{- end}}
`

var requestConf = template.Must(template.New("requestConf").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(requestConfTemplate))

type requestConfData struct {
	CommonName string
	Domains    []string
}

// renderRequestConf produces the CSR configuration for a domain set. The
// domain list is canonicalized first so the emitted config is identical
// for every permutation of the same set.
func renderRequestConf(domains []string) ([]byte, error) {
	canonical := store.CanonicalDomains(domains)
	if len(canonical) == 0 {
		return nil, errors.New("no domains to request")
	}
	var buf bytes.Buffer
	err := requestConf.Execute(&buf, requestConfData{
		CommonName: canonical[0],
		Domains:    canonical,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

