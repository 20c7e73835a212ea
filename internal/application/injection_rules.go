package application

import "threatgate/internal/domain"

// DefaultInjectionTables is the built-in detection rule set. Table order is
// the detection precedence: prompt > sql > command > path traversal.
func DefaultInjectionTables() []domain.PatternTable {
	return []domain.PatternTable{
		{
			Category: domain.InjectionPrompt,
			Patterns: []string{
				`(?i)(ignore|forget|disregard|skip).*(previous|above|instructions|prompt|system)`,
				`(?i)(you are|act as|pretend to be|roleplay|simulate|imagine)`,
				`(?i)(system|assistant|user|human|ai):`,
				`(?i)(new instructions|updated instructions|override|replace)`,
				`(?i)(jailbreak|dan|do anything now|unrestricted|unfiltered)`,
				`(?i)<\|.*?\|>`,
				`(?i)(\[INST\]|\[/INST\]|\[SYSTEM\]|\[/SYSTEM\])`,
				`(?i)(###|===|---).*(instruction|prompt|system)`,
				`(?i)(begin|start).*(new|fresh|clean).*(conversation|session|chat)`,
				`(?i)(forget everything|clear memory|reset|wipe)`,
				`(?i)(show me|reveal|display|print).*(prompt|instruction|system)`,
				`(?i)(what are|what were|tell me).*(your|the).*(instruction|prompt|system)`,
				`(?i)(repeat|echo|say back).*(your|the).*(instruction|prompt)`,
			},
		},
		{
			Category: domain.InjectionSQL,
			Patterns: []string{
				`(?i)(union.*select|select.*from|insert.*into|update.*set|delete.*from)`,
				`(?i)(drop|delete|truncate|alter|create).*(table|database|schema|index)`,
				`(?i)(or|and).*['"]?\d+['"]?\s*[=<>]+\s*['"]?\d+`,
				`(?i)(;|--|\#|/\*|\*/).*(drop|delete|insert|update|select)`,
				`(?i)(exec|execute|executive).*\(.*\)`,
				`(?i)(xp_|sp_).*\(.*\)`,
				`(?i)(pg_|plpgsql_).*\(.*\)`,
				`(?i)(information_schema|sys\.|mysql\.)`,
				`(?i)(1\s*=\s*1|1\s*=\s*'1'|'1'\s*=\s*'1')`,
				`(?i)(waitfor|sleep|delay).*\(.*\)`,
				`(?i)(benchmark|pg_sleep).*\(.*\)`,
			},
		},
		{
			Category: domain.InjectionCommand,
			Patterns: []string{
				"[;&|`$(){}\\[\\]<>]",
				"(?i)(cat|ls|pwd|whoami|id|uname|hostname|env|printenv).*[;&|`]",
				`(?i)(rm|mv|cp|chmod|chown|mkdir|rmdir).*[\*\.]`,
				`(?i)(curl|wget|nc|netcat|ncat|telnet|ssh|scp).*http`,
				`(?i)(python|python3|perl|ruby|bash|sh|zsh).*-c.*['"]`,
				`(?i)(eval|exec|system|popen|subprocess).*\(.*\)`,
				"(?i)(\\$\\{|`|\\(\\(|\\[\\[)",
				`(?i)(base64|b64encode|b64decode).*-d`,
				`(?i)(powershell|cmd|cscript|wscript).*/`,
				`(?i)(\.\./|\.\.\\).*(etc|proc|sys|dev|boot)`,
			},
		},
		{
			Category: domain.InjectionPathTraversal,
			Patterns: []string{
				`\.\./`,
				`\.\.\\`,
				`\.\.%2[fF]`,
				`\.\.%5[cC]`,
				`/etc/passwd`,
				`/etc/shadow`,
				`/proc/`,
				`/sys/`,
				`c:\\windows\\`,
				`c:\\windows\\system32`,
				`\.\./\.\./`,
				`\.\.\\\.\.\\`,
				`\.\.%2[fF]\.\.%2[fF]`,
				`/\.\./`,
				`\\\.\.\\`,
			},
		},
	}
}

// DefaultSanitizerRules is the ordered removal rule subset applied by
// SanitizeQuery. Every rule deletes its matches; none inserts text.
func DefaultSanitizerRules() []string {
	return []string{
		// instruction markers
		`(?i)(ignore|forget|disregard|skip).*(previous|above|instructions|prompt|system)`,
		`(?i)(system|assistant|user|human|ai):`,
		`(?i)(new instructions|updated instructions|override|replace)`,
		`(?i)(jailbreak|dan|do anything now)`,
		// command separators and substitution syntax
		"[;&|`$]",
		`\$\{.*?\}`,
		"`.*?`",
		`\(\(.*?\)\)`,
		// path traversal, including URL-encoded forms
		`\.\./`,
		`\.\.\\`,
		`\.\.%2[fF]`,
		`\.\.%5[cC]`,
		`(\.\./)+`,
		`(\.\.\\)+`,
		// SQL keywords
		`(?i)(union.*select|select.*from)`,
		`(?i)(drop|delete|truncate).*(table|database)`,
		`(?i)(;|--|\#).*(drop|delete|insert|update)`,
		// sensitive file paths
		`/etc/(passwd|shadow|hosts)`,
		`/proc/`,
		`(?i)c:\\windows\\`,
	}
}
