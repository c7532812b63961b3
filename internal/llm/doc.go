// Package llm narrates sampled frames with vision-language models.
// It supports OpenAI and Anthropic vision APIs, the Claude Code CLI, and a deterministic
// simulated backend, with retry logic, rate limiting, and per-frame response caching.
package llm
