package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-FiscalCode/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Go Fiscal Code"
	AppID             = "com.github.tartampluch.go-fiscalcode"
	KeyringService    = "com.github.tartampluch.go-fiscalcode"
	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "app.log"
	EnvFileName       = ".env"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion      = "version"
	FlagDebug        = "debug"
	FlagHeadless     = "headless"
	FlagDescVersion  = "Show application version and exit"
	FlagDescDebug    = "Enable debug logging to stdout"
	FlagDescHeadless = "Run only the HTTP compute API, without the desktop window"
	ModeGUI          = "gui"
	MsgVersionOutput = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Environment (headless mode)
// -----------------------------------------------------------------------------

const (
	EnvPort         = "FISCALCODE_PORT"
	EnvCitiesURL    = "FISCALCODE_CITIES_URL"
	EnvProvincesURL = "FISCALCODE_PROVINCES_URL"
	EnvNormalize    = "FISCALCODE_NORMALIZE"
	EnvCORSOrigins  = "FISCALCODE_CORS_ORIGINS"
)

// -----------------------------------------------------------------------------
// Codec
// -----------------------------------------------------------------------------

const (
	// SkeletonLength is the length of a surname or given-name skeleton.
	SkeletonLength = 3
	// DateSexLength is the length of the year/month/day+sex token.
	DateSexLength = 5
	// CityCodeLength is the fixed width of a municipality short code.
	CityCodeLength = 4
	// BodyLength is the number of characters covered by the check character.
	BodyLength = SkeletonLength*2 + DateSexLength + CityCodeLength
	// FiscalCodeLength is the full output length (body plus check character).
	FiscalCodeLength = BodyLength + 1

	FillerChar      = 'X'
	FemaleDayOffset = 40
	CheckModulus    = 26

	// MonthLetters maps a 0-indexed calendar month to its letter.
	MonthLetters = "ABCDEHLMPRST"

	// Normalisation modes for names.
	NormalizeTransliterate = "transliterate"
	NormalizeStrict        = "strict"

	// Sex values as accepted by the API and the vCard GENDER property.
	SexMale         = "male"
	SexFemale       = "female"
	SexMaleShort    = "M"
	SexFemaleShort  = "F"
	FormatDateSex   = "%02d%c%02d"
	FormatCityLabel = "%s (%s)"
)

// -----------------------------------------------------------------------------
// Validation Rules
// -----------------------------------------------------------------------------

const (
	MinNameLength = 3

	FieldSurname   = "surname"
	FieldGivenName = "given_name"
	FieldSex       = "sex"
	FieldBirthDate = "birth_date"
	FieldBirthCity = "birth_city"

	ValMsgRequired  = "is required"
	ValMsgMinLength = "must have at least 3 characters"
	ValMsgFuture    = "must not be in the future"
	ValMsgNotOption = "must be one of the known municipalities"
	ValMsgSex       = "must be male or female"
)

// -----------------------------------------------------------------------------
// UI Constants & Preferences
// -----------------------------------------------------------------------------

const (
	MainWindowWidth     = 520
	SettingsWindowWidth = 600

	// Preference Keys
	PrefLanguage     = "language"
	PrefCitiesURL    = "cities_url"
	PrefProvincesURL = "provinces_url"
	PrefServerPort   = "server_port"
	PrefNormalize    = "normalize_mode"
	PrefSourceMode   = "vcard_source_mode"
	PrefLocalPath    = "vcard_local_path"
	PrefCardDAVURL   = "carddav_url"
	PrefUsername     = "username"
	PrefLastRun      = "last_run_version"
)

// SupportedLanguages defines the list of available UI languages (ISO 639-1).
var SupportedLanguages = []string{"en", "it"}

// -----------------------------------------------------------------------------
// UI Batch Window Constants
// -----------------------------------------------------------------------------

const (
	BatchWinWidth  = 640
	BatchWinHeight = 420

	// Table Column IDs
	ColIDName   = 0
	ColIDCode   = 1
	ColIDStatus = 2

	// Table Layout
	ColWidthName   = 240
	ColWidthCode   = 200
	ColWidthStatus = 180

	TablePlaceholder = "Cell Content"
	StatusOK         = "OK"
	LogMsgOpenWin    = "Opening batch window"
	LogMsgSorted     = "Batch table sorted"

	// Sorting Indicators
	SortIconAsc  = " ▲"
	SortIconDesc = " ▼"
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyWinTitle      = "win_title"
	TKeyWinSettings   = "win_settings_title"
	TKeyWinBatch      = "win_batch_title"
	TKeyLblSurname    = "lbl_surname"
	TKeyLblGivenName  = "lbl_given_name"
	TKeyLblSex        = "lbl_sex"
	TKeyLblBirthDate  = "lbl_birth_date"
	TKeyLblBirthCity  = "lbl_birth_city"
	TKeyOptMale       = "opt_male"
	TKeyOptFemale     = "opt_female"
	TKeyBtnCompute    = "btn_compute"
	TKeyBtnSettings   = "btn_settings"
	TKeyBtnBatch      = "btn_batch"
	TKeyBtnRefresh    = "btn_refresh"
	TKeyBtnSave       = "btn_save"
	TKeyBtnCancel     = "btn_cancel"
	TKeyBtnBrowse     = "btn_browse"
	TKeyLblResult     = "lbl_result"
	TKeyLblLoading    = "lbl_loading"
	TKeyLblLoaded     = "lbl_loaded" // Requires Count
	TKeyLblLoadFailed = "lbl_load_failed"
	TKeyLblLanguage   = "lbl_language"
	TKeyLblCitiesURL  = "lbl_cities_url"
	TKeyLblProvURL    = "lbl_provinces_url"
	TKeyLblPort       = "lbl_server_port"
	TKeyHelpPort      = "help_port"
	TKeyLblNormalize  = "lbl_normalize"
	TKeyOptTranslit   = "opt_transliterate"
	TKeyOptStrict     = "opt_strict"
	TKeyLblSource     = "lbl_source"
	TKeyModeCardDAV   = "mode_carddav"
	TKeyModeLocal     = "mode_local"
	TKeyLblURL        = "lbl_url"
	TKeyLblUser       = "lbl_user"
	TKeyLblPass       = "lbl_pass"
	TKeyLblFooter     = "lbl_footer"
	TKeyHintDate      = "hint_birth_date"
	TKeyHelpLanguage  = "help_language"
	TKeyHelpURL       = "help_url"
	TKeyLblGeneral    = "lbl_general"
	TKeyLblReference  = "lbl_reference"
	TKeyBtnRun        = "btn_run"
	TKeyLblBatchSum   = "lbl_batch_summary" // Requires Count, Failed
	TKeyErrBatch      = "err_batch"

	// Column Headers
	TKeyColName   = "col_name"
	TKeyColCode   = "col_code"
	TKeyColStatus = "col_status"

	// Validation & Compose Errors (UI)
	TKeyErrRequired     = "err_required"
	TKeyErrMinLength    = "err_min_length"
	TKeyErrDateFormat   = "err_date_format"
	TKeyErrDateFuture   = "err_date_future"
	TKeyErrNotOption    = "err_not_option"
	TKeyErrCityNotFound = "err_city_not_found"
	TKeyErrOutOfDomain  = "err_out_of_domain"
	TKeyErrCompose      = "err_compose"
	TKeyErrPortReq      = "err_port_required"
	TKeyErrPortNum      = "err_port_number"
	TKeyErrPortRange    = "err_port_range"
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	SourceModeWeb          = "web"
	SourceModeLocal        = "local"
	DefaultPort            = "18081"
	DefaultLanguage        = "en"
	DefaultCitiesURL       = "https://comuni-ita.herokuapp.com/api/comuni"
	DefaultProvincesURL    = "https://comuni-ita.herokuapp.com/api/province"
	DefaultNormalize       = NormalizeTransliterate
	DefaultOptionsLimit    = 10
	MaxOptionsLimit        = 100
	DefaultCORSOrigin      = "*"
	UIDSalt                = "go-fiscalcode-v1-" // Salt for deterministic UID generation
	UIDHashLength          = 16
	FormatHashInput        = "%s|%s|%s"
	FormatBatchName        = "%s %s"
	FallbackName           = "Unknown"
	QueryParamSearch       = "q"
	QueryParamLimit        = "limit"
	DateFormatInput        = "2006-01-02"
	DateFormatVCardBasic   = "20060102"
	DateFormatVCardRFC3339 = time.RFC3339

	// File Extensions
	ExtVCF   = ".vcf"
	ExtVCard = ".vcard"
)

// -----------------------------------------------------------------------------
// Standards: vCard
// -----------------------------------------------------------------------------

const (
	VCardBDAY        = "BDAY"
	VCardFN          = "FN"
	VCardBirthPlace  = "BIRTHPLACE"
	VCardXBirthPlace = "X-BIRTHPLACE"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RetryAfterSeconds   = "10"
	ReferenceRetryDelay = 30 * time.Second
	MaxHTTPResponseSize = 64 * 1024 * 1024 // 64MB
	MaxRequestBodySize  = 64 * 1024
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	AddrSeparator       = ":"

	RouteFiscalCode     = "/api/v1/fiscal-code"
	RouteMunicipalities = "/api/v1/municipalities"
	RouteHealth         = "/healthz"
	RouteMetrics        = "/metrics"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType  = "Content-Type"
	HeaderCacheControl = "Cache-Control"
	HeaderETag         = "ETag"
	HeaderRetryAfter   = "Retry-After"
	HeaderXContentType = "X-Content-Type-Options"
	HeaderUserAgent    = "User-Agent"
	HeaderIfNoneMatch  = "If-None-Match"

	MimeJSON            = "application/json; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrCityNotFound     = "city not found"
	ErrOutOfDomain      = "character outside the A-Z/0-9 domain"
	ErrBodyLength       = "fiscal code body must be 15 characters"
	ErrInvalidSex       = "invalid sex"
	ErrInvalidCityCode  = "municipality short code must be 4 characters"
	ErrUnknownNormalize = "unknown normalisation mode"
	ErrValidation       = "input validation failed"
	ErrLocalPathEmpty   = "configuration error: local path is empty"
	ErrWebURLEmpty      = "configuration error: web URL is empty"
	ErrFetcherMissing   = "internal error: network fetcher is not initialized"
	ErrModeUnsupport    = "configuration error: unsupported source mode"
	ErrServerStartup    = "server startup failed"
	ErrServerShutdown   = "server shutdown failed"
	ErrPortRequired     = "server port is required"
	ErrInvalidURL       = "invalid URL structure"
	ErrProtocol         = "unsupported protocol scheme (http/https only)"
	ErrUpstreamStatus   = "upstream returned unexpected status"
	ErrVCardParse       = "failed to parse vCard stream"
	ErrDateParse        = "unable to parse date"
	ErrRefFetch         = "failed to fetch reference list"
	ErrRefDecode        = "failed to decode reference list"
	ErrRefEmpty         = "reference data produced no municipalities"
	ErrTableNotLoaded   = "municipality table not loaded"
	ErrLogFile          = "failed to open log file"
	ErrCacheDir         = "could not determine user cache dir"
	ErrCreateDir        = "could not create app cache dir"
	ErrAppFailed        = "application failed unexpectedly"
	ErrWriteResp        = "failed to write response body"
	ErrLocalesAccess    = "failed to access embedded locales"
	ErrLocaleLoad       = "failed to load locale file"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Municipality table loading, please try again shortly."
	HTTPMsgInvalidJSON  = "invalid JSON body"
	HTTPCodeInvalidJSON = "INVALID_JSON"
	HTTPCodeInvalidDate = "INVALID_DATE"
	HTTPCodeValidation  = "VALIDATION_FAILED"
	HTTPCodeCity        = "CITY_NOT_FOUND"
	HTTPCodeDomain      = "OUT_OF_DOMAIN"
	HTTPCodeInternal    = "INTERNAL_ERROR"
	HTTPCodeNotReady    = "NOT_READY"
	HealthStatusOK      = "healthy"
	HealthStatusLoading = "loading"
)

// -----------------------------------------------------------------------------
// Fallbacks & Messages
// -----------------------------------------------------------------------------

const (
	TitleStartupError = "Startup Error"
	MsgPortBusy       = "Port %s is busy or unavailable."

	MsgAppStarting   = "Starting application"
	MsgAppStop       = "Application stopped gracefully"
	MsgCtxCancel     = "Context cancelled, shutting down UI"
	MsgEnvLoaded     = "Environment file loaded"
	MsgServerListen  = "HTTP server listening"
	MsgServerStop    = "Shutting down HTTP server..."
	MsgTableUpdated  = "Municipality table updated"
	MsgRefLoadStart  = "Loading municipality reference data"
	MsgRefLoaded     = "Municipality reference data loaded"
	MsgRefLoadFailed = "Municipality reference data load failed"
	MsgRefSkipCity   = "Skipping municipality with unknown province"
	MsgComputed      = "Fiscal code computed"
	MsgComposeFailed = "Fiscal code composition failed"
	MsgBatchStarted  = "Batch started"
	MsgBatchDone     = "Batch completed"
	MsgSkippedCard   = "Skipping malformed vCard"
	MsgRequest       = "HTTP request"
	MsgLocaleSkip    = "Skipping non-locale file"
	MsgLocaleBadName = "Skipping malformed locale filename"
	MsgLocaleLoaded  = "Locale loaded successfully"
	MsgTransMissing  = "Missing translation key"
	MsgPassFail      = "Password retrieval failed (might be empty)"
	MsgLogWarning    = "Warning: %s at %s: %v\n"

	PlaceholderURL  = "https://..."
	PlaceholderDate = "YYYY-MM-DD"
)

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

const (
	MetricRequestsTotal   = "fiscalcode_http_requests_total"
	MetricRequestDuration = "fiscalcode_http_request_duration_seconds"
	MetricComputedTotal   = "fiscalcode_computed_total"
	MetricTableSize       = "fiscalcode_municipalities"
	MetricLabelMethod     = "method"
	MetricLabelRoute      = "route"
	MetricLabelStatus     = "status"
	MetricLabelOutcome    = "outcome"
	OutcomeSuccess        = "success"
	OutcomeInvalid        = "invalid"
	OutcomeCityNotFound   = "city_not_found"
	OutcomeOutOfDomain    = "out_of_domain"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyPort      = "port"
	LogKeyMode      = "mode"
	LogKeyUser      = "user"
	LogKeyCount     = "count"
	LogKeySkipped   = "skipped"
	LogKeyFailed    = "failed"
	LogKeyName      = "name"
	LogKeyCity      = "city"
	LogKeyProvince  = "province"
	LogKeyMethod    = "method"
	LogKeyPath      = "path"
	LogKeyRequestID = "request_id"
	LogKeyBatchID   = "batch_id"
	LogKeyETag      = "etag"
	LogKeyDuration  = "duration_ms"
	LogKeySortCol   = "sort_col"
	LogKeySortAsc   = "sort_asc"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompUI      = "ui"
	CompUISet   = "ui_settings"
	CompLoader  = "loader"
	CompBatch   = "batch"
	CompServer  = "server"
	CompFetcher = "fetcher"
	CompMain    = "main"
	CompI18n    = "i18n"
)

// -----------------------------------------------------------------------------
// UI Layout Constants
// -----------------------------------------------------------------------------

const (
	LayoutColumnsDouble = 2
	LayoutColumnsTriple = 3
)

// -----------------------------------------------------------------------------
// Port Validation
// -----------------------------------------------------------------------------

const (
	MinPort       = 1
	MaxPort       = 65535
	PortMaxDigits = 5
)
