package global

var (
	Version = ""
)

// Configuration holds the parameters the CLI resolves once at startup.
// It is passed explicitly to the store, the CORS policy and the API server.
type Configuration struct {
	Host        string
	Port        int
	Directory   string
	MaxBodySize int64
	LogLevel    string
	Tracing     bool
	ServiceName string

	Store struct {
		Atomic bool
		Lock   string
	}

	CORS struct {
		Policy   string
		Origins  []string
		Suffixes []string
		File     string
	}
}
