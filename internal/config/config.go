package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath    string
	RawDir    string
	OutputDir string

	Delimiter           string
	TextEncoding        string
	HeaderRows          int
	InputFormat         string
	DefaultModule       string
	ModuleHeaderToken   string
	ExclusionTokens     []string
	MissingTokens       []string
	TreatBlankAsPending bool
	UnknownStudent      string
	NoTutor             string
	TopModules          int

	IdentityStudent    []string
	IdentityTeam       []string
	IdentitySupervisor []string
	IdentityTutor      []string
	IdentityLastAccess []string
	IdentityPositions  []int

	HTTPAddr    string
	CORSOrigins []string
	MaxUploadMB int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	ListenerProvider     string
	ListenerLabel        string
	ListenerInboxDir     string
	ListenerIntervalSec  int
	ListenerFetchMax     int
	ListenerProcessBatch int
	ListenerAutoExport   bool
}

// overrides is the optional YAML file pointed to by PENDENCIAS_CONFIG.
type overrides struct {
	Delimiter           *string  `yaml:"delimiter"`
	TextEncoding        *string  `yaml:"text_encoding"`
	HeaderRows          *int     `yaml:"header_rows"`
	DefaultModule       *string  `yaml:"default_module"`
	ModuleHeaderToken   *string  `yaml:"module_header_token"`
	ExclusionTokens     []string `yaml:"exclusion_tokens"`
	TreatBlankAsPending *bool    `yaml:"treat_blank_as_pending"`
	Identity            struct {
		Student    []string `yaml:"student"`
		Team       []string `yaml:"team"`
		Supervisor []string `yaml:"supervisor"`
		Tutor      []string `yaml:"tutor"`
		LastAccess []string `yaml:"last_access"`
		Positions  []int    `yaml:"positions"`
	} `yaml:"identity"`
}

var (
	defaultExclusionTokens = "NOTA,TOTAL,MEDIA,AVERAGE,GRADE,FREQUENCIA,ATTENDANCE,PRESENCA,SESSOES,SESSIONS,ENCONTROS"
	defaultMissingTokens   = "NAN,N/A"
)

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawDir:    getEnv("RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		Delimiter:           getEnv("DELIMITER", ","),
		TextEncoding:        getEnv("TEXT_ENCODING", "utf-8"),
		HeaderRows:          getEnvInt("HEADER_ROWS", 2),
		InputFormat:         getEnv("INPUT_FORMAT", ""),
		DefaultModule:       getEnv("DEFAULT_MODULE", "General"),
		ModuleHeaderToken:   getEnv("MODULE_HEADER_TOKEN", ""),
		ExclusionTokens:     getEnvList("EXCLUSION_TOKENS", defaultExclusionTokens),
		MissingTokens:       getEnvList("MISSING_TOKENS", defaultMissingTokens),
		TreatBlankAsPending: getEnvBool("TREAT_BLANK_AS_PENDING", false),
		UnknownStudent:      getEnv("UNKNOWN_STUDENT", "Unknown"),
		NoTutor:             getEnv("NO_TUTOR", "No Tutor"),
		TopModules:          getEnvInt("TOP_MODULES", 10),

		IdentityStudent:    getEnvList("IDENTITY_STUDENT", "Aluno,Estudante,Student"),
		IdentityTeam:       getEnvList("IDENTITY_TEAM", "Equipe,Turma,Team"),
		IdentitySupervisor: getEnvList("IDENTITY_SUPERVISOR", "Supervisor,Supervisora"),
		IdentityTutor:      getEnvList("IDENTITY_TUTOR", "Tutor,Tutora"),
		IdentityLastAccess: getEnvList("IDENTITY_LAST_ACCESS", "Último acesso na plataforma,Último acesso,Last access"),
		IdentityPositions:  getEnvIntList("IDENTITY_POSITIONS", []int{0, 1, 2, 3, 4}),

		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins: getEnvList("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080"),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 32),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		ListenerProvider:     getEnv("LISTENER_PROVIDER", "dir"),
		ListenerLabel:        getEnv("LISTENER_LABEL", "INBOX"),
		ListenerInboxDir:     getEnv("LISTENER_INBOX_DIR", filepath.Join(cwd, "data", "inbox")),
		ListenerIntervalSec:  getEnvInt("LISTENER_INTERVAL_SEC", 30),
		ListenerFetchMax:     getEnvInt("LISTENER_FETCH_MAX", 20),
		ListenerProcessBatch: getEnvInt("LISTENER_PROCESS_BATCH", 20),
		ListenerAutoExport:   getEnvBool("LISTENER_AUTO_EXPORT", true),
	}

	if path := strings.TrimSpace(getEnv("PENDENCIAS_CONFIG", "")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var o overrides
	if err := yaml.Unmarshal(blob, &o); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if o.Delimiter != nil {
		c.Delimiter = *o.Delimiter
	}
	if o.TextEncoding != nil {
		c.TextEncoding = *o.TextEncoding
	}
	if o.HeaderRows != nil {
		c.HeaderRows = *o.HeaderRows
	}
	if o.DefaultModule != nil {
		c.DefaultModule = *o.DefaultModule
	}
	if o.ModuleHeaderToken != nil {
		c.ModuleHeaderToken = *o.ModuleHeaderToken
	}
	if o.TreatBlankAsPending != nil {
		c.TreatBlankAsPending = *o.TreatBlankAsPending
	}
	if len(o.ExclusionTokens) > 0 {
		c.ExclusionTokens = o.ExclusionTokens
	}
	if len(o.Identity.Student) > 0 {
		c.IdentityStudent = o.Identity.Student
	}
	if len(o.Identity.Team) > 0 {
		c.IdentityTeam = o.Identity.Team
	}
	if len(o.Identity.Supervisor) > 0 {
		c.IdentitySupervisor = o.Identity.Supervisor
	}
	if len(o.Identity.Tutor) > 0 {
		c.IdentityTutor = o.Identity.Tutor
	}
	if len(o.Identity.LastAccess) > 0 {
		c.IdentityLastAccess = o.Identity.LastAccess
	}
	if len(o.Identity.Positions) > 0 {
		c.IdentityPositions = o.Identity.Positions
	}
	return nil
}

// Validate checks the extraction options that have a closed set of values.
func (c Config) Validate() error {
	if c.Delimiter != "," && c.Delimiter != ";" {
		return fmt.Errorf("invalid DELIMITER %q: expected \",\" or \";\"", c.Delimiter)
	}
	if c.HeaderRows != 1 && c.HeaderRows != 2 {
		return fmt.Errorf("invalid HEADER_ROWS %d: expected 1 or 2", c.HeaderRows)
	}
	if strings.TrimSpace(c.DefaultModule) == "" {
		return fmt.Errorf("DEFAULT_MODULE must not be empty")
	}
	return nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	return SplitList(getEnv(key, fallback))
}

func getEnvIntList(key string, fallback []int) []int {
	parts := SplitList(getEnv(key, ""))
	if len(parts) == 0 {
		return fallback
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return fallback
		}
		out = append(out, n)
	}
	return out
}

// SplitList splits a comma separated value, dropping empty entries.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
