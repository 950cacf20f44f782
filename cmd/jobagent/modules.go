package main

// Compiled-in modules. Each registers itself with core in init().
import (
	_ "github.com/flemzord/jobagent/internal/gateway"
	_ "github.com/flemzord/jobagent/modules/discovery/adzuna"
	_ "github.com/flemzord/jobagent/modules/lock/redis"
	_ "github.com/flemzord/jobagent/modules/provider/gemini"
	_ "github.com/flemzord/jobagent/modules/provider/openai_compatible"
	_ "github.com/flemzord/jobagent/modules/store/postgres"
	_ "github.com/flemzord/jobagent/modules/store/sqlite"
	_ "github.com/flemzord/jobagent/modules/telemetry/otlp"
)
