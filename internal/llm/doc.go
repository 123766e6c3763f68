// Package llm implements the AI safe-page generation job's abstract LLM
// collaborator against AWS Bedrock.
package llm
