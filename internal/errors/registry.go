package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "A value in vpack.json or on the command line is not valid.",
		DocURL:   "https://vpack.dev/docs/errors/E100",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "vpack.json was not found in the project directory.",
		DocURL:   "https://vpack.dev/docs/errors/E101",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "vpack.json could not be read or parsed.",
		DocURL:   "https://vpack.dev/docs/errors/E102",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "No entry points",
		Detail:   "At least one entry point is required to build a bundle.",
		DocURL:   "https://vpack.dev/docs/errors/E103",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid filename template",
		Detail:   "The output filename template could not be parsed.",
		DocURL:   "https://vpack.dev/docs/errors/E104",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Unsafe output path",
		Detail:   "The output directory must not be the project root or one of its ancestors.",
		DocURL:   "https://vpack.dev/docs/errors/E105",
	},

	// ============================================
	// Resolution Errors (E200-E209)
	// ============================================

	"E200": {
		Category: CategoryResolve,
		Message:  "Module not found",
		Detail:   "The import specifier could not be resolved to a file.",
		DocURL:   "https://vpack.dev/docs/errors/E200",
	},
	"E201": {
		Category: CategoryResolve,
		Message:  "Invalid package.json",
		Detail:   "A package.json encountered during resolution could not be parsed.",
		DocURL:   "https://vpack.dev/docs/errors/E201",
	},

	// ============================================
	// Transform Errors (E210-E229)
	// ============================================

	"E210": {
		Category: CategoryTransform,
		Message:  "Transform failed",
		Detail:   "A transformer unit rejected the module source.",
		DocURL:   "https://vpack.dev/docs/errors/E210",
	},
	"E211": {
		Category: CategoryTransform,
		Message:  "Failed to read module",
		Detail:   "The module source could not be read from disk.",
		DocURL:   "https://vpack.dev/docs/errors/E211",
	},

	// ============================================
	// Emission Errors (E300-E319)
	// ============================================

	"E300": {
		Category: CategoryEmit,
		Message:  "Emission failed",
		Detail:   "An output asset could not be written.",
		DocURL:   "https://vpack.dev/docs/errors/E300",
	},
	"E301": {
		Category: CategoryEmit,
		Message:  "Output plugin failed",
		Detail:   "An output plugin hook returned an error.",
		DocURL:   "https://vpack.dev/docs/errors/E301",
	},

	// ============================================
	// Dev Server Errors (E400-E419)
	// ============================================

	"E400": {
		Category: CategoryDev,
		Message:  "Dev server failed",
		Detail:   "The development server could not start or stopped unexpectedly.",
		DocURL:   "https://vpack.dev/docs/errors/E400",
	},

	// ============================================
	// CLI Errors (E500-E519)
	// ============================================

	"E500": {
		Category: CategoryCLI,
		Message:  "Build failed",
		Detail:   "The compilation finished with errors.",
		DocURL:   "https://vpack.dev/docs/errors/E500",
	},
	"E501": {
		Category: CategoryCLI,
		Message:  "Project already initialized",
		Detail:   "vpack.json already exists in the target directory.",
		DocURL:   "https://vpack.dev/docs/errors/E501",
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
