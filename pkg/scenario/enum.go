package scenario

import "strings"

// synonym tables implement the "tolerant of synonyms" requirement from
// spec.md §4.1 (e.g. "HttpApi"/"Http"/"Api" -> HttpApi).

var stepTypeSynonyms = map[string]StepType{
	"httpapi": StepHttpApi, "http": StepHttpApi, "api": StepHttpApi, "rest": StepHttpApi,
	"sqlprocedure": StepSqlProcedure, "procedure": StepSqlProcedure, "storedprocedure": StepSqlProcedure,
	"sqlquery": StepSqlQuery, "query": StepSqlQuery, "sql": StepSqlQuery,
	"wait": StepWait, "delay": StepWait, "sleep": StepWait,
	"databaseconnection": StepDatabaseConn, "dbconnection": StepDatabaseConn, "connection": StepDatabaseConn,
	"customscript": StepCustomScript, "script": StepCustomScript,
	"fileoperation": StepFileOperation, "file": StepFileOperation,
}

var executionModeSynonyms = map[string]ExecutionMode{
	"parallel": ModeParallel,
	"sequential": ModeSequential, "sequence": ModeSequential,
	"grouped": ModeGrouped, "group": ModeGrouped,
	"weighted": ModeWeighted, "weight": ModeWeighted,
}

var loadProfileSynonyms = map[string]LoadProfileType{
	"constantrate": ProfileConstantRate, "constant": ProfileConstantRate,
	"rampup": ProfileRampUp, "ramp": ProfileRampUp,
	"spike": ProfileSpike,
	"stress": ProfileStress, "stresstest": ProfileStress,
	"soak": ProfileSoak, "endurance": ProfileSoak,
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseStepType(raw string) (StepType, bool) {
	t, ok := stepTypeSynonyms[normalize(raw)]
	return t, ok
}

func parseExecutionMode(raw string) ExecutionMode {
	if m, ok := executionModeSynonyms[normalize(raw)]; ok {
		return m
	}
	return ModeParallel
}

func parseLoadProfileType(raw string) (LoadProfileType, bool) {
	t, ok := loadProfileSynonyms[normalize(raw)]
	return t, ok
}

var validHTTPMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}
