package emit

// Output modes.
const (
	ModeFile   = "file"
	ModeStdout = "stdout"
	ModeObject = "s3"
)

// Config selects where records are written.
type Config struct {
	// Mode is one of file, stdout or s3.
	Mode string `mapstructure:"mode" default:"stdout"`
	// Path is the output file in file mode. It is truncated on every run.
	Path string `mapstructure:"path" default:"records.ndjson"`
	// Prefix is the object key prefix in s3 mode.
	Prefix string `mapstructure:"prefix" default:"history"`
}
