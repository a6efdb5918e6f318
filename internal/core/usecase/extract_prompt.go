package usecase

const invoiceSystemInstruction = "You are a JSON-only extraction engine. Output ONLY raw JSON."

const invoiceExtractionPrompt = `You are an expert accountant and a precise data-entry clerk.
Task: extract the data from the attached invoice image/file with 100% accuracy.

Return ONLY a JSON object with exactly this structure:
{
    "vendor_name": "string",
    "vendor_tax_id": "string",
    "invoice_number": "string",
    "invoice_date": "YYYY-MM-DD",
    "total_amount": float,
    "currency": "SAR",
    "items": [
        {
            "description": "string",
            "quantity": float,
            "unit_price": float,
            "total_price": float,
            "category": "string (one of: 'operations', 'marketing', 'assets', 'maintenance')"
        }
    ]
}

Important notes:
- If the date is in the Hijri calendar, convert it to Gregorian (ISO 8601).
- If a field cannot be found, set it to null.
- Double-check every number.
`
