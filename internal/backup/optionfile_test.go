package backup

import (
	"testing"

	"github.com/dev-tams/mydumpkit/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestRenderOptionFile(t *testing.T) {
	got := renderOptionFile(
		config.ConnectionConfig{Host: "db.internal", Port: 3307, User: "backup", Password: `p"a\ss`},
		[]config.DumpOption{{Key: "single-transaction"}, {Key: "max_allowed_packet", Value: "512M"}},
	)

	want := "[client]\n" +
		"host=\"db.internal\"\n" +
		"port=\"3307\"\n" +
		"user=\"backup\"\n" +
		"password=\"p\\\"a\\\\ss\"\n" +
		"[mysqldump]\n" +
		"single-transaction\n" +
		"max_allowed_packet=\"512M\"\n"
	assert.Equal(t, want, string(got))
}

func TestRenderOptionFileOmitsEmptyValues(t *testing.T) {
	got := renderOptionFile(config.ConnectionConfig{User: "root"}, nil)
	assert.Equal(t, "[client]\nuser=\"root\"\n", string(got))
}
