package backup

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/dev-tams/mydumpkit/internal/config"
)

var optionValueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// renderOptionFile builds the my.cnf style file read through
// --defaults-file. Credentials only ever travel through this file.
func renderOptionFile(conn config.ConnectionConfig, opts []config.DumpOption) []byte {
	var b bytes.Buffer

	b.WriteString("[client]\n")
	if conn.Host != "" {
		writeOption(&b, "host", conn.Host)
	}
	if conn.Port > 0 {
		writeOption(&b, "port", strconv.Itoa(conn.Port))
	}
	if conn.User != "" {
		writeOption(&b, "user", conn.User)
	}
	if conn.Password != "" {
		writeOption(&b, "password", conn.Password)
	}

	if len(opts) > 0 {
		b.WriteString("[mysqldump]\n")
		for _, o := range opts {
			writeOption(&b, o.Key, o.Value)
		}
	}
	return b.Bytes()
}

func writeOption(b *bytes.Buffer, key, value string) {
	b.WriteString(key)
	if value != "" {
		b.WriteString(`="`)
		b.WriteString(optionValueEscaper.Replace(value))
		b.WriteString(`"`)
	}
	b.WriteString("\n")
}
