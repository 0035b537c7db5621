package observability

const (
	AttrServiceName     = "service.name"
	AttrQueryTask       = "query.task"
	AttrQueryMethod     = "query.method"
	AttrQueryLanguage   = "query.language"
	AttrLLMModel        = "llm.model"
	AttrLLMProvider     = "llm.provider"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrCacheName       = "cache.name"
	AttrSandboxLayer    = "sandbox.layer"
	AttrWorkflowNode    = "workflow.node"
	AttrErrorType       = "error.type"
	AttrHTTPMethod      = "http.method"
	AttrHTTPPath        = "http.path"
	AttrHTTPStatusCode  = "http.status_code"

	SpanQuery            = "engine.query"
	SpanRouteClassify    = "router.classify"
	SpanLLMRequest       = "llm.request"
	SpanSandboxExecution = "sandbox.execute"
	SpanWorkflowRun      = "workflow.run"
	SpanRAGSearch        = "rag.search"
	SpanScrapeFetch      = "scrape.fetch"
	SpanWebSearch        = "search.query"
	SpanHTTPRequest      = "http.request"

	DefaultServiceName  = "minerva"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)
