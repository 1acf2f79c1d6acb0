package mcpserver

// NoteFormatContract describes how learnlog notes are structured and how
// wiki-links between them resolve.
const NoteFormatContract = `# learnlog Note Format Contract

A note has a **title**, optional **tags**, optional **folder**, and a rich-text
**content** document produced by the editor.

## Content document

Content is a JSON tree. Every node has a ` + "`" + `type` + "`" + `. Text leaves carry
` + "`" + `text` + "`" + ` (and optional ` + "`" + `marks` + "`" + `); every other node carries ordered
` + "`" + `content` + "`" + ` children and optional ` + "`" + `attrs` + "`" + `.

` + "```" + `json
{"type": "doc", "content": [
  {"type": "paragraph", "content": [
    {"type": "text", "text": "Builds on [[Attention Is All You Need]] #ml"}
  ]}
]}
` + "```" + `

The create_note tool accepts plain text instead and turns each line into a
paragraph.

## Slugs

Every note has a unique slug derived from its title when it is created:
symbols like & and % are spelled out, other punctuation is dropped,
accents are stripped, other scripts are transliterated (Привет becomes
privet), and words are joined with hyphens in lowercase.

- "Attention Is All You Need!" becomes ` + "`" + `attention-is-all-you-need` + "`" + `
- A second note with the same title gets ` + "`" + `-2` + "`" + `, then ` + "`" + `-3` + "`" + ` and so on.
- Renaming a note does **not** change its slug.

## Wiki-links

1. Write ` + "`" + `[[Target Title]]` + "`" + ` anywhere in a text run. The inner text is
   slugified and matched against existing slugs.
2. A link to a note that does not exist yet is kept as text and creates no
   edge. Re-save the note (or relink) after creating the target.
3. Links cannot contain ` + "`" + `]` + "`" + ` and cannot span formatting changes:
   the whole ` + "`" + `[[...]]` + "`" + ` must sit in one text leaf.
4. Titles made only of punctuation produce an empty slug and never
   resolve.
5. Removing a link from the content removes its edge on the next save.

## Tags

Explicit tags are merged with inline ` + "`" + `#tags` + "`" + ` found in the text. A tag
starts with a letter and may contain letters, digits, ` + "`" + `_` + "`" + `, ` + "`" + `-` + "`" + ` and ` + "`" + `/` + "`" + `.
`
