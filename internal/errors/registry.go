package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Config errors (E100-E119)
	"E100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "The server could not find the http.json file it was pointed at.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Config file unreadable",
		Detail:   "The config file exists but could not be read.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid config JSON",
		Detail:   "The config file is not valid JSON or a value has the wrong type.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A config value is outside its allowed range or names an unknown option.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Config write failed",
		Detail:   "The config file could not be written.",
	},

	// Startup errors (E120-E139)
	"E120": {
		Category: CategoryStartup,
		Message:  "Activity store unavailable",
		Detail:   "The session activity backend could not be opened or did not answer.",
	},
	"E121": {
		Category: CategoryStartup,
		Message:  "File store unavailable",
		Detail:   "The store serving image and bundle files could not be opened.",
	},
	"E122": {
		Category: CategoryStartup,
		Message:  "Server failed",
		Detail:   "The HTTP server could not bind its address or stopped with an error.",
	},

	// CLI errors (E140-E159)
	"E140": {
		Category: CategoryCLI,
		Message:  "Invalid flag value",
		Detail:   "A command-line flag has a value the server cannot use.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
