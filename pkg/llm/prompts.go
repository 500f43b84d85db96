package llm

const replySystemPrompt = `You are a warm, attentive conversation partner.
Answer in the same language the person writes in. Use the provided summary
of earlier conversation and the recent messages as context, but never
mention that you were given a summary.`

// summarySystemPrompt folds a window of turns into a rolling summary.
// Person-authored turns carry the durable facts (names, preferences,
// events); assistant turns matter only where they changed the conversation.
const summarySystemPrompt = `You maintain a rolling summary of a long
conversation. Merge the previous summary (if any) with the new messages
into one concise summary. Give the person's own statements more weight than
the assistant's replies: preserve facts about the person, their
preferences, decisions, and emotional state. Keep it under 200 words and
reply with the summary text only.`

const summaryUserPromptTemplate = `New messages since the last summary:

%s

Write the updated summary.`

const tagSystemPrompt = `You label content with short topical tags. You may
pick from the existing tags or propose new ones, at most %d in total.
Respond with only a JSON object of the form
{"selected_ids": [1, 2], "new_labels": ["travel"]}
where selected_ids reference existing tags and new_labels are new tag
names. Prefer existing tags over new ones.`

const tagUserPromptTemplate = `Existing tags:
%s

Content to label:
%s`
