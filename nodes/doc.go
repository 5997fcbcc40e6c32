// Package nodes contains the builtin node kinds: input nodes, text and
// prompt templating, chat models, file loading, text splitting, formatting
// and guardrail validation. RegisterBuiltins adds all of them to a registry.
//
// Kinds and their ports:
//
//	input/<type>          -> value
//	text/static           -> text
//	text/join             text[] -> text
//	prompt/template       <variables> -> prompt, message
//	chat-model/langchain  prompt, system -> response, message
//	chat-model/openai     prompt, system -> response, message
//	splitter/recursive    text -> chunks, documents
//	loader/text           path -> text, documents
//	format/markdown       markdown -> html
//	format/html-text      html -> text
//	guardrail/validator   value -> value, valid
package nodes
