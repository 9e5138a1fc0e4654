package ai

import "text/template"

var summarizeConditionPrompt = template.Must(template.New("summarizeCondition").Parse(
	`You are an assistant for a physiotherapy clinic.
Write a concise, patient-friendly summary of the condition "{{.ConditionName}}".
Cover what it is, common symptoms and how physiotherapy can help.
Do not give a diagnosis and keep the summary under 200 words.`))

var suggestExercisePrompt = template.Must(template.New("suggestExercise").Parse(
	`You are an assistant for a physiotherapy clinic.
A patient describes their pain as follows:
{{.PainDescription}}

Suggest a few gentle exercises that may help, with brief instructions for each.
Remind the patient to stop if the pain gets worse and to consult a physiotherapist before starting.`))
