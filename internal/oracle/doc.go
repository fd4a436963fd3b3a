// Package oracle classifies bookmarks with an external text-classification
// service.
//
// The service is reached through Completer, a single-shot
// system-prompt/user-prompt call. Classifier owns everything around it:
// batching, the closed label vocabulary, retries with exponential backoff,
// the inter-batch delay and local recovery. No oracle failure ever aborts a
// run: a batch that cannot be classified gets the default label for every
// member.
//
// Backends: ChatClient (OpenAI-compatible /chat/completions, DeepSeek by
// default), OllamaClient (/api/chat) and GeminiClient (google.golang.org/genai).
package oracle
