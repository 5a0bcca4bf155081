package descriptions

// Tool descriptions with practical examples and use cases

const (
	// Planning
	PlanDescription = `Rasterize a PDF form, ask the vision model where each answer goes, and open a review session.

**When to use:** Start here. Give the form and the answers; the tool returns a session id and the numbered list of proposed placements.

**Why it's useful:** Works on flat and scanned forms that have no fillable fields, because text is placed by page coordinates.

**Examples:**
• Fill from a string: path="w4.pdf", data="Name: Jane Doe, SSN: 123-45-6789"
• Fill from a file: path="intake.pdf", data_file="answers.json"
• Steer the model: hint="the applicant section is the left column"

**Common workflows:**
1. Quick fill: formfill_plan → formfill_commit
2. Reviewed fill: formfill_plan → formfill_preview → formfill_adjust / formfill_add / formfill_remove → formfill_commit

**Best practices:** Coordinates in every other tool are pixels of the rasterized page (origin top-left); the plan response states the page size in pixels.`

	ListDescription = `Show the current placements of a session.

**When to use:** After edits, to confirm indices, text and coordinates before committing.

**Best practices:** Indices are stable: removing a placement never renumbers the others, and new placements always get a fresh index.`

	// Editing
	AdjustDescription = `Move one placement to new pixel coordinates. Text and confidence are kept.

**When to use:** The preview shows text slightly off its line or box.

**Examples:**
• Nudge right and up: index=2, x=312, y=395

**Best practices:** (x, y) is the left end of the text baseline. Preview again after adjusting.`

	RemoveDescription = `Delete one placement from the session.

**When to use:** The model placed an answer that should not be on the form, or placed it twice.`

	AddDescription = `Add a placement by hand with full confidence.

**When to use:** The model missed a field, or a value needs to appear in a second place.

**Examples:**
• Add a date on page 2: field="Date", text="2024-05-01", x=900, y=1410, page=1

**Best practices:** page is 0-based and defaults to 0.`

	PreviewDescription = `Render a page with every placement drawn as a color-coded box and return the image.

**When to use:** Before committing, to check placements visually.

**Why it's useful:** Green boxes are high confidence (>= 0.8), yellow medium (>= 0.5), red low. Red boxes deserve a close look.

**Best practices:** The preview never changes the session or the document.`

	// Finishing
	CommitDescription = `Write the filled PDF and close the session.

**When to use:** When the preview looks right.

**Best practices:** The source document is never modified. Either the whole output is written or nothing is; on failure the session stays open so the problem can be fixed and the commit retried.`

	AbortDescription = `Close a session without writing anything.

**When to use:** The plan is unusable, or the form should be filled again from scratch.`
)
