package backup

import (
	"context"
	"iter"
	"strings"

	"github.com/dev-tams/mydumpkit/internal/config"
)

const (
	ClientTool = "mysql"
	DumpTool   = "mysqldump"
)

var showDatabasesArgs = []string{"-e", "show databases", "-B", "-N"}

type MySQLDumper struct {
	inv *Invoker
}

func NewMySQL(conn config.ConnectionConfig, opts []config.DumpOption, chunkSize int) *MySQLDumper {
	return &MySQLDumper{inv: &Invoker{Conn: conn, Options: opts, ChunkSize: chunkSize}}
}

// Databases lists database names in server order.
func (d *MySQLDumper) Databases(ctx context.Context) ([]string, error) {
	var out strings.Builder
	for chunk, err := range d.inv.Run(ctx, ClientTool, showDatabasesArgs...) {
		if err != nil {
			return nil, err
		}
		out.Write(chunk)
	}
	return parseDatabaseList(out.String()), nil
}

// Dump streams mysqldump output for one database.
func (d *MySQLDumper) Dump(ctx context.Context, name string) iter.Seq2[[]byte, error] {
	return d.inv.Run(ctx, DumpTool, name)
}

func parseDatabaseList(raw string) []string {
	var names []string
	for _, line := range strings.Split(raw, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}
