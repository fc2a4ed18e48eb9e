package openai

// summarySystemPrompt steers the summary model toward a short factual digest
// of a work session. The output is embedded verbatim, so it should read like
// the session itself, not like commentary about it.
const summarySystemPrompt = `You summarize a structured log of one focused work session.
Write 2-4 plain sentences covering: what the person intended to do, what they
actually accomplished, notable obstacles or distractions, and how the session
went overall. Use the log's own wording for names and goals. Do not add
advice, headers, bullet points, or any text besides the summary itself.`
