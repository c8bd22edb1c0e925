package sqlite

import "strings"

// Token classes for the completeness automaton.
const (
	tkSemi = iota
	tkWS
	tkOther
	tkExplain
	tkCreate
	tkTemp
	tkTrigger
	tkEnd
)

// States: 0 invalid, 1 start (complete), 2 normal, 3 explain, 4 create,
// 5 trigger body, 6 semicolon inside trigger body, 7 end keyword seen.
// This is the engine's own sqlite3_complete automaton; the extra states
// exist solely so semicolons inside CREATE TRIGGER ... BEGIN ... END bodies
// do not terminate the statement.
var completeTrans = [8][8]uint8{
	/*            SEMI WS OTHER EXPLAIN CREATE TEMP TRIGGER END */
	/* invalid */ {1, 0, 2, 3, 4, 2, 2, 2},
	/* start   */ {1, 1, 2, 3, 4, 2, 2, 2},
	/* normal  */ {1, 2, 2, 2, 2, 2, 2, 2},
	/* explain */ {1, 3, 3, 2, 4, 2, 2, 2},
	/* create  */ {1, 4, 2, 2, 2, 4, 5, 2},
	/* trigger */ {6, 5, 5, 5, 5, 5, 5, 5},
	/* semi    */ {6, 6, 5, 5, 5, 5, 5, 7},
	/* end     */ {1, 7, 5, 5, 5, 5, 5, 5},
}

// CompleteStatement reports whether sql forms one or more complete
// statements: it ends with a semicolon that is outside of strings, quoted
// identifiers, comments, and trigger bodies.
func CompleteStatement(sql string) bool {
	state := uint8(0)
	i := 0
	for i < len(sql) {
		var token int
		c := sql[i]
		switch {
		case c == ';':
			token = tkSemi
			i++
		case c == ' ' || c == '\t' || c == '\n' || c == '\v' || c == '\f' || c == '\r':
			token = tkWS
			i++
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += 2 + end + 2
			token = tkWS
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			nl := strings.IndexByte(sql[i:], '\n')
			if nl < 0 {
				return state == 1
			}
			i += nl + 1
			token = tkWS
		case c == '[':
			end := strings.IndexByte(sql[i+1:], ']')
			if end < 0 {
				return false
			}
			i += 1 + end + 1
			token = tkOther
		case c == '\'' || c == '"' || c == '`':
			end := strings.IndexByte(sql[i+1:], c)
			if end < 0 {
				return false
			}
			i += 1 + end + 1
			token = tkOther
		case isIdentChar(c):
			start := i
			for i < len(sql) && isIdentChar(sql[i]) {
				i++
			}
			token = keywordToken(sql[start:i])
		default:
			token = tkOther
			i++
		}
		state = completeTrans[state][token]
	}
	return state == 1
}

func keywordToken(word string) int {
	switch len(word) {
	case 3:
		if strings.EqualFold(word, "end") {
			return tkEnd
		}
	case 4:
		if strings.EqualFold(word, "temp") {
			return tkTemp
		}
	case 6:
		if strings.EqualFold(word, "create") {
			return tkCreate
		}
	case 7:
		if strings.EqualFold(word, "trigger") {
			return tkTrigger
		}
		if strings.EqualFold(word, "explain") {
			return tkExplain
		}
	case 9:
		if strings.EqualFold(word, "temporary") {
			return tkTemp
		}
	}
	return tkOther
}

// isIdentChar follows the engine's IdChar set: digits continue the same run,
// so a token like 5end never splits into a number plus an END keyword.
func isIdentChar(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') || c >= 0x80
}
