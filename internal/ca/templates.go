package ca

import (
	"bytes"
	"text/template"
)

// caConfTemplate is the openssl configuration generated next to the root
// CA. The [req] sections drive the one-time self-signing of the root
// certificate; the [ca] sections drive every later "openssl ca" signing
// and revocation against the CA database. copy_extensions carries the
// subjectAltName list from the CSR into the issued certificate.
const caConfTemplate = `[ca]
default_ca = CA_default

[CA_default]
dir              = {{.Dir}}
certs            = {{.Dir}}/certs
new_certs_dir    = {{.Dir}}/certs
database         = {{.Dir}}/index.txt
serial           = {{.Dir}}/serial
private_key      = {{.Dir}}/rootCA.key
certificate      = {{.Dir}}/rootCA.crt
default_md       = sha256
default_days     = {{.CertDays}}
policy           = policy_loose
x509_extensions  = v3_leaf
copy_extensions  = copy
unique_subject   = no

[policy_loose]
commonName             = supplied
countryName            = optional
stateOrProvinceName    = optional
localityName           = optional
organizationName       = optional
organizationalUnitName = optional
emailAddress           = optional

[req]
prompt             = no
default_md         = sha256
distinguished_name = req_dn
x509_extensions    = v3_ca

[req_dn]
CN = {{.CommonName}}

[v3_ca]
basicConstraints       = critical, CA:TRUE, pathlen:0
keyUsage               = critical, keyCertSign, cRLSign
subjectKeyIdentifier   = hash

[v3_leaf]
basicConstraints       = CA:FALSE
keyUsage               = critical, digitalSignature, keyEncipherment
extendedKeyUsage       = serverAuth
subjectKeyIdentifier   = hash
authorityKeyIdentifier = keyid,issuer
`

type caConfData struct {
	Dir        string
	CommonName string
	CertDays   int
}

var caConf = template.Must(template.New("caConf").Parse(caConfTemplate))

// renderCAConf produces the openssl CA configuration for the given config
// root.
func renderCAConf(dir, commonName string, certDays int) ([]byte, error) {
	var buf bytes.Buffer
	err := caConf.Execute(&buf, caConfData{
		Dir:        dir,
		CommonName: commonName,
		CertDays:   certDays,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
