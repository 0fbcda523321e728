package detect

// DefaultKeywords is the invite-code vocabulary a non-SIX_UPPER match must
// appear near. Matching is case-insensitive.
var DefaultKeywords = []string{
	// Chinese
	"邀请码", "激活码", "内测码", "体验码", "测试码", "兑换码",
	"暗号", "口令", "密码", "通关密语", "神秘代码", "专属码",
	"限时", "内测", "抢先", "专属", "独家", "新码",

	// English
	"invite", "code", "activation", "beta", "test", "promo",
}

// DefaultDenylist contains tokens that look like codes but never are:
// page boilerplate, script identifiers and common uppercase words.
var DefaultDenylist = []string{
	// Session and auth boilerplate
	"COOKIE", "COOKIES", "LOGIN", "LOGOUT", "SIGNIN", "SIGNUP",
	"TOKEN", "SESSION", "REGISTER", "ACCOUNT", "PASSWD",

	// Script and markup
	"SCRIPT", "BUTTON", "HEADER", "FOOTER", "SIDEBAR", "NAVBAR",
	"WIDGET", "MODULE", "LAYOUT", "DIALOG", "TOOLTIP", "BANNER",
	"RETURN", "FUNCTION", "STRING", "OBJECT", "NUMBER", "RESULT",
	"STATUS", "SUCCESS", "SELECT", "OPTION", "HIDDEN", "INLINE",

	// Web
	"HTTPS", "UTF8", "JSON", "HTML", "WEBP", "AVIF",

	// Common words
	"PLEASE", "THANKS", "HELLO", "UPDATE", "SYSTEM", "PORTAL",
	"REASON", "BACKEND", "DEFAULT", "MOBILE", "ANDROID", "IPHONE",
}

// DefaultNumericPrefixes are literal prefixes for PREFIXED_NUMERIC codes.
var DefaultNumericPrefixes = []string{"XIAOMEI"}

// DefaultAlnumPrefixes are literal prefixes for PREFIXED_ALNUM codes.
var DefaultAlnumPrefixes = []string{"XM"}

// DefaultKeywordWindow is how many runes on each side of a match are searched
// for a keyword, and the size of the context snippet.
const DefaultKeywordWindow = 50
